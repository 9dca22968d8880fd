package payments

import (
	"errors"
	"fmt"
	"html"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/docfinder/appointments-api/pkg/logging"
)

// FakePaymentsHandler exposes a tiny demo UI to "complete" fake checkout sessions.
// Only mount this handler when ALLOW_FAKE_PAYMENTS=true.
type FakePaymentsHandler struct {
	checkout *FakeCheckoutService
	logger   *logging.Logger
}

func NewFakePaymentsHandler(checkout *FakeCheckoutService, logger *logging.Logger) *FakePaymentsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &FakePaymentsHandler{checkout: checkout, logger: logger}
}

func (h *FakePaymentsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{sessionID}", h.HandleCheckout)
	r.Post("/{sessionID}/complete", h.HandleComplete)
	r.Get("/{sessionID}/cancel", h.HandleCancel)
	return r
}

func (h *FakePaymentsHandler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionParam(w, r)
	if !ok {
		return
	}
	session, err := h.checkout.RetrieveSession(r.Context(), sessionID)
	if err != nil {
		http.Error(w, "checkout session not found", http.StatusNotFound)
		return
	}

	amount := float64(session.AmountTotal) / 100.0
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>Demo Checkout</title>
    <style>
      body{font-family:system-ui,-apple-system,Segoe UI,Roboto,Ubuntu,Cantarell,Noto Sans,sans-serif;max-width:680px;margin:40px auto;padding:0 16px;}
      .card{border:1px solid #e5e7eb;border-radius:12px;padding:18px;}
      .btn{display:inline-block;background:#111827;color:#fff;padding:12px 16px;border-radius:10px;text-decoration:none;border:0;cursor:pointer;}
      .muted{color:#6b7280;font-size:14px;}
      code{background:#f3f4f6;padding:2px 6px;border-radius:6px;}
    </style>
  </head>
  <body>
    <h1>Demo Checkout</h1>
    <div class="card">
      <p><strong>Amount:</strong> %.2f %s</p>
      <p class="muted">This is a demo-only payment page (no real payment is processed).</p>
      <form method="POST" action="%s/complete">
        <button class="btn" type="submit">Pay</button>
      </form>
      <p><a class="muted" href="%s/cancel">Cancel</a></p>
      <p class="muted">Session: <code>%s</code></p>
    </div>
  </body>
</html>`, amount, html.EscapeString(strings.ToUpper(session.Currency)), html.EscapeString(r.URL.Path), html.EscapeString(r.URL.Path), html.EscapeString(session.ID))
}

func (h *FakePaymentsHandler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionParam(w, r)
	if !ok {
		return
	}
	redirect, err := h.checkout.MarkPaid(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			http.Error(w, "checkout session not found", http.StatusNotFound)
			return
		}
		h.logger.Error("fake payment completion failed", "error", err, "session_id", sessionID)
		http.Error(w, "failed to complete payment", http.StatusInternalServerError)
		return
	}
	h.logger.Info("fake checkout session paid", "session_id", sessionID)
	if redirect == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, redirect, http.StatusSeeOther)
}

func (h *FakePaymentsHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionParam(w, r)
	if !ok {
		return
	}
	redirect, found := h.checkout.cancelRedirect(sessionID)
	if !found {
		http.Error(w, "checkout session not found", http.StatusNotFound)
		return
	}
	if redirect == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, redirect, http.StatusSeeOther)
}

func sessionParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := strings.TrimSpace(chi.URLParam(r, "sessionID"))
	if !ValidSessionID(raw) {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return "", false
	}
	return raw, true
}
