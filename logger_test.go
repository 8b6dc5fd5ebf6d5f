package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerLevels(t *testing.T) {
	prev := logger
	defer func() { logger = prev }()

	tests := []struct {
		level     string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"DEBUG", true, true, true},
		{"INFO", false, true, true},
		{"", false, true, true},
		{"WARNING", false, false, true},
		{"ERROR", false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger = newLogger(&buf, tt.level)

			logDebug("debug line")
			logInfo("info line", "item", "ABC123")
			logWarn("warn line")
			logError("error line", errors.New("boom"))

			out := buf.String()
			assert.Equal(t, tt.wantDebug, bytes.Contains(buf.Bytes(), []byte("debug line")))
			assert.Equal(t, tt.wantInfo, bytes.Contains(buf.Bytes(), []byte("item=ABC123")))
			assert.Equal(t, tt.wantWarn, bytes.Contains(buf.Bytes(), []byte("warn line")))
			assert.Contains(t, out, `msg="error line"`)
			assert.Contains(t, out, "err=boom")
			assert.Contains(t, out, "level=error")
		})
	}
}
