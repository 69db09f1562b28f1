package server

import (
	"errors"
	"fmt"

	"github.com/npezzotti/classroom-chat/internal/accounts"
	"github.com/npezzotti/classroom-chat/internal/stats"
	"github.com/npezzotti/classroom-chat/internal/types"
)

const (
	alreadyLoggedIn = "You are already logged in."
	badCredentials  = "Invalid username or password."
	authUnavailable = "Login is unavailable right now, please try again."
	sessionExpired  = "Your session has expired, please log in again."
	usernameTaken   = "That username is already taken."
	registerUsage   = "Usage: /register <name> <password>"
	loginUsage      = "Usage: /login <name> <password>"
	resumeUsage     = "Usage: /resume <token>"
)

func (cs *ChatServer) cmdRegister(s *Session, args []string, _ string) {
	if s.Authenticated() {
		s.queueMessage(AuthErrorMsg(formRegister, alreadyLoggedIn))
		return
	}
	if len(args) < 2 {
		s.queueMessage(AuthErrorMsg(formRegister, registerUsage))
		return
	}

	acct, err := cs.accounts.Register(s.ctx, args[0], args[1])
	if err != nil {
		var inputErr *accounts.InputError
		switch {
		case errors.As(err, &inputErr):
			s.queueMessage(AuthErrorMsg(formRegister, "Registration failed: "+inputErr.Reason+"."))
		case errors.Is(err, accounts.ErrDuplicateName):
			s.queueMessage(AuthErrorMsg(formRegister, usernameTaken))
		default:
			cs.log.Println("Register:", err)
			s.queueMessage(AuthErrorMsg(formRegister, authUnavailable))
		}
		return
	}

	cs.log.Printf("session %s registered account %q", s.id, acct.Username)
	cs.completeLogin(s, acct, formRegister)
}

func (cs *ChatServer) cmdLogin(s *Session, args []string, _ string) {
	if s.Authenticated() {
		s.queueMessage(AuthErrorMsg(formLogin, alreadyLoggedIn))
		return
	}
	if len(args) < 2 {
		s.queueMessage(AuthErrorMsg(formLogin, loginUsage))
		return
	}

	acct, err := cs.accounts.Verify(s.ctx, args[0], args[1])
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) || errors.Is(err, accounts.ErrBadPassword) {
			cs.stats.Incr(stats.FailedLogins)
			s.queueMessage(AuthErrorMsg(formLogin, badCredentials))
			return
		}
		cs.log.Println("Verify:", err)
		s.queueMessage(AuthErrorMsg(formLogin, authUnavailable))
		return
	}

	cs.completeLogin(s, acct, formLogin)
}

func (cs *ChatServer) cmdResume(s *Session, args []string, _ string) {
	if len(args) == 0 {
		s.queueMessage(AuthErrorMsg(formResume, resumeUsage))
		return
	}
	cs.resume(s, args[0])
}

// resume logs s in with a token issued by an earlier auth_success.
func (cs *ChatServer) resume(s *Session, token string) {
	if s.Authenticated() {
		s.queueMessage(AuthErrorMsg(formResume, alreadyLoggedIn))
		return
	}

	username, err := cs.tokens.Username(token)
	if err != nil {
		s.queueMessage(AuthErrorMsg(formResume, sessionExpired))
		return
	}

	acct, err := cs.accounts.Lookup(s.ctx, username)
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			s.queueMessage(AuthErrorMsg(formResume, sessionExpired))
			return
		}
		cs.log.Println("Lookup:", err)
		s.queueMessage(AuthErrorMsg(formResume, authUnavailable))
		return
	}

	cs.completeLogin(s, acct, formResume)
}

// completeLogin moves s into the authenticated state as acct: fresh color,
// a token for resuming, replayed history and a join notice.
func (cs *ChatServer) completeLogin(s *Session, acct types.Account, form string) {
	color := randomColor()
	if !s.login(acct.Username, color, acct.IsOperator) {
		s.queueMessage(AuthErrorMsg(form, alreadyLoggedIn))
		return
	}

	if err := cs.accounts.TouchLogin(s.ctx, acct.Username); err != nil {
		cs.log.Println("TouchLogin:", err)
	}

	token, err := cs.tokens.Issue(acct.Username)
	if err != nil {
		cs.log.Println("Issue token:", err)
	}

	cs.log.Printf("session %s logged in as %q", s.id, acct.Username)
	s.queueMessage(AuthSuccessMsg(form, acct.Username, color, token))
	s.queueMessage(InitMsg(acct.Username, color))
	cs.sendHistory(s)
	if acct.IsOperator {
		s.queueMessage(AdminGrantedMsg())
	}

	cs.fanout.BroadcastAll(SystemMsg(fmt.Sprintf("User %s joined the chat.", acct.Username)))
}
