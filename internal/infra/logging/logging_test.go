//go:build !integration

package logging_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"streamshare/internal/infra/logging"
)

func TestWithAttachesContextIDs(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)
	ctx := logging.WithTraceID(context.Background(), "tr-1")
	ctx = logging.WithSubscriptionID(ctx, "sub-1")
	ctx = logging.WithAccountID(ctx, "acc-1")

	logging.With(ctx, &base).Info().Msg("hello")

	out := buf.String()
	for _, want := range []string{`"trace_id":"tr-1"`, `"subscription_id":"sub-1"`, `"account_id":"acc-1"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log line %q missing %s", out, want)
		}
	}
}

func TestRedact(t *testing.T) {
	if got := logging.Redact("ABCD-EFGH-IJKL", false); got != "ABCD...KL" {
		t.Errorf("Redact = %q", got)
	}
	if got := logging.Redact("short", false); got != "***" {
		t.Errorf("Redact short = %q", got)
	}
	if got := logging.Redact("ABCD-EFGH-IJKL", true); got != "ABCD-EFGH-IJKL" {
		t.Errorf("dev mode must not redact, got %q", got)
	}
}
