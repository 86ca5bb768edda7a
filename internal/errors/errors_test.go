package errors

import (
	stderrors "errors"
	"net/http"
	"strings"
	"testing"

	"github.com/vango-dev/ion/pkg/protocol"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{protocol.CodeUnsupportedMedia, http.StatusUnsupportedMediaType},
		{protocol.CodeMethodNotFound, http.StatusMethodNotAllowed},
		{protocol.CodeConflict, http.StatusConflict},
		{protocol.CodeTicketBroken, http.StatusPreconditionFailed},
		{protocol.CodeUnsupportedSubProtocol, http.StatusPreconditionFailed},
		{protocol.CodeExchangeRejected, http.StatusPreconditionFailed},
		{protocol.CodeUnsupportedTransport, http.StatusPreconditionFailed},
		{protocol.CodeDeadlineExceeded, http.StatusGatewayTimeout},
		{protocol.CodeInternal, http.StatusInternalServerError},
		{"DIVIDE_BY_ZERO", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := StatusFor(tt.code); got != tt.want {
				t.Errorf("StatusFor(%s) = %d, want %d", tt.code, got, tt.want)
			}
		})
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantMsg string
		wantCat Category
	}{
		{"ticket", protocol.CodeTicketBroken, "Ticket is invalid or expired", CategoryTicket},
		{"transport", protocol.CodeMalformedFrame, "Malformed frame", CategoryTransport},
		{"cancellation", protocol.CodeDeadlineExceeded, "Deadline exceeded", CategoryCancellation},
		{"application", "OUT_OF_STOCK", "Application error", CategoryProtocol},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code)
			if err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMsg)
			}
			if err.Category != tt.wantCat {
				t.Errorf("Category = %q, want %q", err.Category, tt.wantCat)
			}
			if err.Code != tt.code {
				t.Errorf("Code = %q, want %q", err.Code, tt.code)
			}
		})
	}
	if IsRegistered("OUT_OF_STOCK") || !IsRegistered(protocol.CodeConflict) {
		t.Error("IsRegistered mismatch")
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil, protocol.CodeInternal) != nil {
		t.Error("FromError(nil) != nil")
	}

	pe := protocol.NewError(protocol.CodeConflict, "key k busy")
	e := FromError(pe, protocol.CodeInternal)
	if e.Code != protocol.CodeConflict || e.Message != "key k busy" || e.Status != http.StatusConflict {
		t.Errorf("FromError(ProtocolError) = %+v", e)
	}
	if !stderrors.Is(e, pe) {
		t.Error("wrapped ProtocolError not reachable with errors.Is")
	}

	cause := stderrors.New("disk on fire")
	e = FromError(cause, protocol.CodeInternal)
	if e.Code != protocol.CodeInternal || !stderrors.Is(e, cause) {
		t.Errorf("FromError(plain) = %+v", e)
	}
	if again := FromError(e, "OTHER"); again != e {
		t.Error("FromError re-wrapped an IonError")
	}
	if p := e.Protocol(); p.Code != protocol.CodeInternal || p.Message != "Internal error" {
		t.Errorf("Protocol() = %+v", p)
	}
}

func TestFormat(t *testing.T) {
	DisableColors()
	defer EnableColors()

	e := New(protocol.CodeTicketBroken).Wrap(stderrors.New("mac mismatch"))
	out := e.Format()
	for _, want := range []string{"ERROR TICKET_BROKEN: Ticket is invalid or expired", "category=ticket status=412", "Cause: mac mismatch"} {
		if !strings.Contains(out, want) {
			t.Errorf("Format() missing %q:\n%s", want, out)
		}
	}
	if got := e.FormatCompact(); got != "TICKET_BROKEN: Ticket is invalid or expired" {
		t.Errorf("FormatCompact() = %q", got)
	}

	var sb strings.Builder
	PrintError(&sb, stderrors.New("bad flag"))
	if !strings.Contains(sb.String(), "CLI_USAGE") || !strings.Contains(sb.String(), "bad flag") {
		t.Errorf("PrintError wrote %q", sb.String())
	}
}

func TestWrapText(t *testing.T) {
	lines := wrapText(strings.Repeat("word ", 40), 20)
	for _, l := range lines {
		if len(l) > 20 {
			t.Errorf("line %q longer than 20", l)
		}
	}
	if wrapText("", 10) != nil {
		t.Error("wrapText(\"\") != nil")
	}
}
