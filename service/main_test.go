package service

import (
	"os"
	"testing"
)

func TestMain(m *testing.M) {
	os.Setenv("ENVIRONMENT", "test")
	os.Exit(m.Run())
}
