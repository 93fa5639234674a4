package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog/hlog"

	"github.com/petermazzocco/photostockage/internal/metrics"
)

// MsgEmailFailed is the only error the contact form ever sees.
const MsgEmailFailed = "Failed to send email"

// Mailer is satisfied by resend's Emails service.
type Mailer interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// MailSettings are the fixed envelope addresses.
type MailSettings struct {
	From string
	To   string
}

type contactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// EmailHandler forwards a contact form message and answers with the
// provider's response.
func EmailHandler(w http.ResponseWriter, r *http.Request, mailer Mailer, settings MailSettings) {
	log := hlog.FromRequest(r)
	fail := func(err error) {
		log.Error().Err(err).Msg("contact email failed")
		metrics.EmailsTotal.WithLabelValues("failed").Inc()
		writeError(w, http.StatusInternalServerError, MsgEmailFailed)
	}

	if mailer == nil {
		fail(fmt.Errorf("no mail provider configured"))
		return
	}
	var in contactRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		fail(fmt.Errorf("decode contact request: %w", err))
		return
	}

	sent, err := mailer.SendWithContext(r.Context(), &resend.SendEmailRequest{
		From:    settings.From,
		To:      []string{settings.To},
		ReplyTo: in.Email,
		Subject: "New Contact Form Submission from " + in.Name,
		Text:    fmt.Sprintf("Name: %s\nEmail: %s\nMessage: %s\n", in.Name, in.Email, in.Message),
	})
	if err != nil {
		fail(err)
		return
	}
	metrics.EmailsTotal.WithLabelValues("sent").Inc()
	log.Info().Str("email_id", sent.Id).Msg("contact email sent")
	writeJSON(w, http.StatusOK, sent)
}
