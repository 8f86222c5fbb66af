package contact

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/baxromumarov/immo-encheres/internal/listing"
	"github.com/baxromumarov/immo-encheres/internal/observability"
)

// MailConfig is the SMTP account used to forward submissions.
type MailConfig struct {
	Host string
	Port string
	User string
	Pass string
	From string
	To   []string
}

func (mc MailConfig) Enabled() bool {
	return strings.TrimSpace(mc.Host) != "" && len(mc.To) > 0
}

var sendOverride func(to []string, subject, body string) error

// SetSendOverride lets tests capture outgoing mail. Pass nil to restore SMTP.
func SetSendOverride(fn func(to []string, subject, body string) error) {
	sendOverride = fn
}

// Notifier emails each new submission to the site owners.
type Notifier struct {
	cfg     MailConfig
	timeout time.Duration
}

func NewNotifier(cfg MailConfig) *Notifier {
	return &Notifier{cfg: cfg, timeout: 15 * time.Second}
}

// Notify sends a plain-text summary of s. It is a no-op when mail is not
// configured.
func (n *Notifier) Notify(s Submission) error {
	if n == nil || !n.cfg.Enabled() {
		return nil
	}
	subject := fmt.Sprintf("Nouveau contact : %s", s.Nom)
	body := Summary(s)
	var err error
	if sendOverride != nil {
		err = sendOverride(n.cfg.To, subject, body)
	} else {
		err = n.send(buildMessage(n.cfg.From, n.cfg.To, subject, body))
	}
	if err != nil {
		observability.IncError(observability.ErrorMail, "contact_mail")
		return err
	}
	observability.IncEmailSent()
	return nil
}

// Summary is the body of the notification email.
func Summary(s Submission) string {
	yesNo := func(b bool) string {
		if b {
			return "oui"
		}
		return "non"
	}
	budget := "non renseigné"
	if s.Budget > 0 {
		budget = listing.FormatEuros(int(s.Budget))
	}
	lines := []string{
		"Nom : " + s.Nom,
		"Email : " + s.Email,
		"Téléphone : " + s.Phone,
		"Déjà acheté aux enchères : " + yesNo(s.DejaAchete),
		"Déjà visité un bien : " + yesNo(s.DejaVisite),
		"Accompagné d'un avocat : " + yesNo(s.Avocat),
		"Budget : " + budget,
		"Source : " + s.Source,
	}
	if s.ID > 0 {
		lines = append(lines, fmt.Sprintf("Référence : #%d", s.ID))
	}
	return strings.Join(lines, "\n") + "\n"
}

// send uses implicit TLS on port 465 and STARTTLS, when offered, elsewhere.
func (n *Notifier) send(msg []byte) error {
	addr := net.JoinHostPort(n.cfg.Host, n.cfg.Port)
	dialer := &net.Dialer{Timeout: n.timeout}
	tlsCfg := &tls.Config{ServerName: n.cfg.Host}

	var conn net.Conn
	var err error
	if n.cfg.Port == "465" {
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, tlsCfg)
	} else {
		conn, err = dialer.Dial("tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("smtp dial %s: %w", addr, err)
	}

	c, err := smtp.NewClient(conn, n.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp client: %w", err)
	}
	defer c.Close()

	if n.cfg.Port != "465" {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(tlsCfg); err != nil {
				return fmt.Errorf("smtp starttls: %w", err)
			}
		}
	}
	if n.cfg.User != "" {
		auth := smtp.PlainAuth("", n.cfg.User, n.cfg.Pass, n.cfg.Host)
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := c.Mail(envelopeAddress(n.cfg.From)); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	for _, rcpt := range n.cfg.To {
		if err := c.Rcpt(envelopeAddress(rcpt)); err != nil {
			return fmt.Errorf("smtp rcpt %s: %w", rcpt, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp data close: %w", err)
	}
	return c.Quit()
}

// envelopeAddress strips a display name: "Immo <a@b.fr>" -> "a@b.fr".
func envelopeAddress(addr string) string {
	if i := strings.LastIndex(addr, "<"); i >= 0 {
		if j := strings.LastIndex(addr, ">"); j > i {
			return strings.TrimSpace(addr[i+1 : j])
		}
	}
	return strings.TrimSpace(addr)
}

func buildMessage(from string, to []string, subject, body string) []byte {
	headers := []string{
		fmt.Sprintf("From: %s", from),
		fmt.Sprintf("To: %s", strings.Join(to, ", ")),
		fmt.Sprintf("Subject: %s", subject),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
		"",
		strings.ReplaceAll(body, "\n", "\r\n"),
	}
	return []byte(strings.Join(headers, "\r\n"))
}
