// Package templates рендерит письма-напоминания по корзинам.
//
// Тела писем хранятся во встроенных HTML-файлах с маркерами {{USER_NAME}},
// {{PLAN_NAME}}, {{EXPIRY_DATE}} и {{RENEWAL_LINK}}. Значения подставляются
// после очистки bluemonday, поэтому пользовательские данные не несут разметку.
package templates

import (
	"embed"
	"fmt"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/magabrotheeeer/subscription-lifecycle/internal/reminder"
)

//go:embed html/*.html
var files embed.FS

const (
	defaultUserName = "cliente"
	defaultPlanName = "Premium"
)

var subjects = map[reminder.Bucket]string{
	reminder.ThreeDaysBefore:    "Seu acesso vence em 3 dias",
	reminder.TwoDaysBefore:      "Seu acesso vence em 2 dias",
	reminder.OneDayBefore:       "Seu acesso vence amanhã",
	reminder.ExpiredToday:       "Seu acesso vence hoje",
	reminder.OneDayAfter:        "Seu acesso expirou",
	reminder.FiveDaysAfter:      "Sentimos sua falta",
	reminder.FifteenDaysAfter:   "Seus dados continuam esperando por você",
	reminder.ThirtyDaysAfter:    "Faz um mês que seu acesso expirou",
	reminder.MonthlyAfterThirty: "Ainda dá tempo de voltar",
}

// Variables значения маркеров шаблона.
type Variables struct {
	UserName    string
	PlanName    string
	ExpiryDate  string
	RenewalLink string
}

// Message готовое письмо.
type Message struct {
	Subject  string `json:"subject"`
	HTMLBody string `json:"html_body"`
}

// Renderer рендерит письма. Безопасен для конкурентного использования.
type Renderer struct {
	bodies map[reminder.Bucket]string
	policy *bluemonday.Policy
}

// New загружает шаблоны всех корзин. Отсутствие шаблона или темы для любой корзины ошибка.
func New() (*Renderer, error) {
	const op = "templates.New"

	bodies := make(map[reminder.Bucket]string, len(reminder.All()))
	for _, b := range reminder.All() {
		raw, err := files.ReadFile("html/" + string(b) + ".html")
		if err != nil {
			return nil, fmt.Errorf("%s: bucket %s: %w", op, b, err)
		}
		if _, ok := subjects[b]; !ok {
			return nil, fmt.Errorf("%s: bucket %s: no subject", op, b)
		}
		bodies[b] = string(raw)
	}
	return &Renderer{bodies: bodies, policy: bluemonday.StrictPolicy()}, nil
}

// Render подставляет переменные в шаблон корзины b.
func (r *Renderer) Render(b reminder.Bucket, v Variables) (Message, error) {
	const op = "templates.Render"

	body, ok := r.bodies[b]
	if !ok {
		return Message{}, fmt.Errorf("%s: %w: %q", op, reminder.ErrUnknownBucket, b)
	}

	userName := r.clean(v.UserName, defaultUserName)
	planName := r.clean(v.PlanName, defaultPlanName)
	link, err := r.link(v.RenewalLink)
	if err != nil {
		return Message{}, fmt.Errorf("%s: %w", op, err)
	}

	replacer := strings.NewReplacer(
		"{{USER_NAME}}", userName,
		"{{PLAN_NAME}}", planName,
		"{{EXPIRY_DATE}}", r.policy.Sanitize(v.ExpiryDate),
		"{{RENEWAL_LINK}}", link,
	)
	return Message{
		Subject:  subjects[b],
		HTMLBody: replacer.Replace(body),
	}, nil
}

func (r *Renderer) clean(value, fallback string) string {
	s := strings.TrimSpace(r.policy.Sanitize(value))
	if s == "" {
		return fallback
	}
	return s
}

func (r *Renderer) link(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("renewal link: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return "", fmt.Errorf("renewal link: unsupported scheme %q", u.Scheme)
	}
	return r.policy.Sanitize(u.String()), nil
}
