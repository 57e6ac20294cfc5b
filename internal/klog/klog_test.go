package klog

import (
	"bytes"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func captureAtLevel(t *testing.T, format, severity string) []string {
	t.Helper()
	var buf bytes.Buffer
	Configure(format, severity, &buf)

	var out []string
	for _, f := range []func(){
		func() { Tracef("hello") },
		func() { Debugf("hello") },
		func() { Infof("hello") },
		func() { Warnf("hello") },
		func() { Errorf("hello") },
	} {
		f()
		out = append(out, buf.String())
		buf.Reset()
	}
	return out
}

func TestSeverityFiltering(t *testing.T) {
	cases := []struct {
		severity string
		wantBlank [5]bool
	}{
		{OFF, [5]bool{true, true, true, true, true}},
		{ERROR, [5]bool{true, true, true, true, false}},
		{WARNING, [5]bool{true, true, true, false, false}},
		{INFO, [5]bool{true, true, false, false, false}},
		{DEBUG, [5]bool{true, false, false, false, false}},
		{TRACE, [5]bool{false, false, false, false, false}},
	}

	for _, tc := range cases {
		t.Run(tc.severity, func(t *testing.T) {
			out := captureAtLevel(t, "text", tc.severity)
			for i, blank := range tc.wantBlank {
				if blank {
					assert.Empty(t, out[i])
				} else {
					assert.NotEmpty(t, out[i])
				}
			}
		})
	}
}

func TestTextFormat(t *testing.T) {
	out := captureAtLevel(t, "text", TRACE)
	re := regexp.MustCompile(`time="[0-9/:. ]+" severity=INFO message=hello`)
	assert.Regexp(t, re, out[2])
}

func TestJSONFormat(t *testing.T) {
	out := captureAtLevel(t, "json", TRACE)
	assert.Contains(t, out[2], `"severity":"INFO"`)
	assert.Contains(t, out[2], `"message":"hello"`)
}

func TestForComponentTagsLines(t *testing.T) {
	var buf bytes.Buffer
	Configure("json", DEBUG, &buf)
	ForComponent("sched").Info("dispatch")
	assert.Contains(t, buf.String(), `"component":"sched"`)
}
