package server

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/npezzotti/classroom-chat/internal/accounts"
	"github.com/npezzotti/classroom-chat/internal/stats"
)

type access int

const (
	// accessAny commands work in every session state.
	accessAny access = iota
	// accessChat commands need the same rights as posting a message.
	accessChat
	// accessAccount commands need a logged-in account.
	accessAccount
	// accessOperator commands need the operator bit.
	accessOperator
)

type commandFunc func(cs *ChatServer, s *Session, args []string, rest string)

type command struct {
	run    commandFunc
	access access
}

var commands map[string]*command

func init() {
	commands = map[string]*command{
		"register":     {run: (*ChatServer).cmdRegister},
		"login":        {run: (*ChatServer).cmdLogin},
		"resume":       {run: (*ChatServer).cmdResume},
		"ping":         {run: (*ChatServer).cmdPing},
		"?":            {run: (*ChatServer).cmdHelp},
		"help":         {run: (*ChatServer).cmdHelp},
		"note":         {run: (*ChatServer).cmdNote, access: accessAccount},
		"m":            {run: (*ChatServer).cmdDM, access: accessChat},
		"dm":           {run: (*ChatServer).cmdDM, access: accessChat},
		"tdtu":         {run: (*ChatServer).cmdBanner, access: accessChat},
		"rainbow":      {run: (*ChatServer).cmdRainbow, access: accessOperator},
		"theme":        {run: (*ChatServer).cmdTheme, access: accessOperator},
		"chattitle":    {run: (*ChatServer).cmdTitle, access: accessOperator},
		"title":        {run: (*ChatServer).cmdTitle, access: accessOperator},
		"clearall":     {run: (*ChatServer).cmdClearAll, access: accessOperator},
		"archive":      {run: (*ChatServer).cmdClearAll, access: accessOperator},
		"viewdatabase": {run: (*ChatServer).cmdViewDatabase, access: accessOperator},
		"db":           {run: (*ChatServer).cmdViewDatabase, access: accessOperator},
		"archiveprune": {run: (*ChatServer).cmdArchivePrune, access: accessOperator},
	}
}

const (
	helpText = "Commands: /register <name> <password>, /login <name> <password>, " +
		"/note [text], /m <name> <message>, /ping, /tdtu, /?. " +
		"Start a message with \"hey huybeo\" to ask the AI."
	operatorHelpText = "Operator: /rainbow, /theme <name>, /title <text>, /clearall, " +
		"/viewdatabase, /archiveprune [days]."
	permissionDenied = "Permission denied."

	// maxPruneDays bounds /archiveprune so the age fits in a time.Duration.
	maxPruneDays = 36500
)

// splitCommand breaks text into the lower-cased command name, its
// whitespace-separated arguments, and the raw text after the name.
func splitCommand(text string) (name string, args []string, rest string) {
	text = strings.TrimSpace(text)
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", nil, ""
	}

	name = strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	rest = strings.TrimSpace(strings.TrimPrefix(text, fields[0]))
	return name, fields[1:], rest
}

func (cs *ChatServer) handleCommand(s *Session, text string) {
	if trigger := cs.cfg.OperatorTrigger; trigger != "" {
		if fields := strings.Fields(text); len(fields) > 0 && strings.EqualFold(fields[0], trigger) {
			cs.stats.Incr(stats.Commands)
			cs.cmdGrantOperator(s)
			return
		}
	}

	name, args, rest := splitCommand(text)
	cmd, ok := commands[name]
	if !ok {
		s.queueMessage(SystemMsg(fmt.Sprintf("Unrecognized command: /%s. Type /? for help.", name)))
		return
	}
	cs.stats.Incr(stats.Commands)

	if !cs.allowed(s, cmd.access) {
		return
	}
	cmd.run(cs, s, args, rest)
}

// allowed checks level for s and tells the session when it falls short.
func (cs *ChatServer) allowed(s *Session, level access) bool {
	switch level {
	case accessChat:
		return cs.canChat(s)
	case accessAccount:
		if !s.Authenticated() {
			s.queueMessage(SystemMsg(loginRequired))
			return false
		}
	case accessOperator:
		if !s.Operator() {
			s.queueMessage(SystemMsg(permissionDenied))
			return false
		}
	}
	return true
}

func (cs *ChatServer) cmdPing(s *Session, args []string, _ string) {
	var start []byte
	if len(args) > 0 {
		start = []byte(args[0])
	}
	s.queueMessage(PongMsg(start))
}

func (cs *ChatServer) cmdHelp(s *Session, _ []string, _ string) {
	text := helpText
	if s.Operator() {
		text += " " + operatorHelpText
	}
	s.queueMessage(SystemMsg(text))
}

func (cs *ChatServer) cmdNote(s *Session, _ []string, rest string) {
	account := s.Account()
	if rest == "" {
		note, err := cs.accounts.Note(s.ctx, account)
		if err != nil {
			cs.storageFailure(s, "Note", err)
			return
		}
		if note == "" {
			s.queueMessage(SystemMsg("You have no note yet. Use /note <text> to save one."))
			return
		}
		s.queueMessage(SystemMsg("Your note: " + note))
		return
	}

	saved, err := cs.accounts.SetNote(s.ctx, account, rest)
	if err != nil {
		cs.storageFailure(s, "SetNote", err)
		return
	}
	if saved != rest {
		s.queueMessage(SystemMsg(fmt.Sprintf("Note saved (truncated to %d characters).", accounts.MaxNoteLength)))
		return
	}
	s.queueMessage(SystemMsg("Note saved."))
}

func (cs *ChatServer) cmdDM(s *Session, args []string, rest string) {
	if len(args) < 2 {
		s.queueMessage(SystemMsg("Usage: /m <name> <message>"))
		return
	}
	body := strings.TrimSpace(strings.TrimPrefix(rest, args[0]))
	cs.handleDM(s, args[0], body)
}

func (cs *ChatServer) cmdBanner(s *Session, _ []string, _ string) {
	cs.post(s, banner)
}

// cmdGrantOperator sets the operator bit for a logged-in session.
func (cs *ChatServer) cmdGrantOperator(s *Session) {
	if !cs.allowed(s, accessAccount) {
		return
	}

	s.grantOperator()
	cs.log.Printf("session %s (%s) granted operator", s.id, s.Account())
	s.queueMessage(AdminGrantedMsg())
	s.queueMessage(SystemMsg("ACCESS GRANTED. " + operatorHelpText))
}

func (cs *ChatServer) cmdRainbow(s *Session, _ []string, _ string) {
	s.setColor(RainbowColor)
	s.queueMessage(SystemMsg("Rainbow mode activated!"))
}

func (cs *ChatServer) cmdTheme(s *Session, args []string, _ string) {
	if len(args) == 0 {
		s.queueMessage(SystemMsg("Usage: /theme <name>"))
		return
	}

	theme := args[0]
	cs.room.SetTheme(theme)
	cs.fanout.BroadcastEveryone(ThemeMsg(theme))
	cs.fanout.BroadcastAll(SystemMsg(fmt.Sprintf("Global theme changed to %s", theme)))
}

func (cs *ChatServer) cmdTitle(s *Session, _ []string, rest string) {
	if rest == "" {
		s.queueMessage(SystemMsg("Usage: /title <text>"))
		return
	}

	cs.room.SetTitle(rest)
	cs.fanout.BroadcastEveryone(TitleMsg(rest))
	cs.fanout.BroadcastAll(SystemMsg(fmt.Sprintf("Chat title changed to %q", rest)))
}

func (cs *ChatServer) cmdClearAll(s *Session, _ []string, _ string) {
	n, err := cs.history.ArchiveAndClear(s.ctx)
	if err != nil {
		cs.storageFailure(s, "ArchiveAndClear", err)
		return
	}

	cs.log.Printf("session %s (%s) archived %d messages", s.id, s.Account(), n)
	cs.fanout.BroadcastEveryone(ClearHistoryMsg())
	cs.fanout.BroadcastAll(SystemMsg("Chat history has been cleared by an Admin."))
	s.queueMessage(SystemMsg(fmt.Sprintf("Archived %d messages.", n)))
}

func (cs *ChatServer) cmdViewDatabase(s *Session, _ []string, _ string) {
	rows, count, err := cs.history.Snapshot(s.ctx, cs.cfg.DatabaseView)
	if err != nil {
		cs.storageFailure(s, "Snapshot", err)
		return
	}
	s.queueMessage(DatabaseViewMsg(rows, count))
}

func (cs *ChatServer) cmdArchivePrune(s *Session, args []string, _ string) {
	maxAge := cs.cfg.ArchiveMaxAge
	if len(args) > 0 {
		days, err := strconv.Atoi(args[0])
		if err != nil || days <= 0 || days > maxPruneDays {
			s.queueMessage(SystemMsg("Usage: /archiveprune [days]"))
			return
		}
		maxAge = time.Duration(days) * 24 * time.Hour
	}

	n, err := cs.history.PruneArchive(s.ctx, maxAge)
	if err != nil {
		cs.storageFailure(s, "PruneArchive", err)
		return
	}
	s.queueMessage(SystemMsg(fmt.Sprintf("Pruned %d archived messages older than %d days.", n, int(maxAge.Hours()/24))))
}
