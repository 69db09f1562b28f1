package testutil

import (
	"log"
	"os"
	"testing"
)

// TestLogger returns a stdout logger tagged with the running test's name.
func TestLogger(t *testing.T) *log.Logger {
	return log.New(os.Stdout, "["+t.Name()+"] ", log.LstdFlags|log.Lmicroseconds)
}
