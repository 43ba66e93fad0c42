package mailer

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

// Template names
const (
	TemplateReservation   = "reservation_email.html"
	TemplateRelease       = "release_email.html"
	TemplateDailyReminder = "daily_reminder.html"
	TemplateMonthlyReport = "monthly_report.html"
)

// Renderer renders the embedded HTML templates
type Renderer struct {
	templates *template.Template
}

// NewRenderer parses the embedded templates
func NewRenderer() (*Renderer, error) {
	t, err := template.New("mail").Funcs(template.FuncMap{
		"datetime": func(t time.Time) string { return t.Format("2006-01-02 15:04") },
		"cost": func(c *float64) string {
			if c == nil {
				return "N/A"
			}
			return fmt.Sprintf("%.2f", *c)
		},
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &Renderer{templates: t}, nil
}

// Render executes the named template with data
func (r *Renderer) Render(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ReservationData feeds the reservation and release templates
type ReservationData struct {
	UserName    string
	Username    string
	SpotID      uint
	LotName     string
	LotPrice    float64
	ParkTime    time.Time
	ExitTime    *time.Time
	TotalCost   *float64
	CurrentYear int
}

// ReminderData feeds the daily reminder template
type ReminderData struct {
	UserName    string
	CurrentYear int
}

// ReportRow is a reservation line of the monthly report body
type ReportRow struct {
	ID        uint
	SpotID    uint
	LotName   string
	ParkTime  time.Time
	ExitTime  *time.Time
	TotalCost *float64
}

// MonthlyReportData feeds the monthly report template
type MonthlyReportData struct {
	UserName     string
	Reservations []ReportRow
	CurrentYear  int
}
