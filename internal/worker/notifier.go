package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/parkpal-server/internal/mailer"
	"github.com/parkpal-server/internal/models"
	"github.com/parkpal-server/internal/queue"
	"github.com/parkpal-server/internal/report"
	"github.com/parkpal-server/internal/repository"
	"github.com/parkpal-server/internal/service"
)

const (
	reminderInactivity = 24 * time.Hour
	reportWindow       = 30 * 24 * time.Hour
)

// Notifier turns queued jobs into emails
type Notifier struct {
	userRepo        *repository.UserRepository
	lotRepo         *repository.LotRepository
	spotRepo        *repository.SpotRepository
	reservationRepo *repository.ReservationRepository
	sender          mailer.Sender
	renderer        *mailer.Renderer
	now             func() time.Time
}

// NewNotifier creates a new Notifier
func NewNotifier(
	userRepo *repository.UserRepository,
	lotRepo *repository.LotRepository,
	spotRepo *repository.SpotRepository,
	reservationRepo *repository.ReservationRepository,
	sender mailer.Sender,
	renderer *mailer.Renderer,
) *Notifier {
	return &Notifier{
		userRepo:        userRepo,
		lotRepo:         lotRepo,
		spotRepo:        spotRepo,
		reservationRepo: reservationRepo,
		sender:          sender,
		renderer:        renderer,
		now:             time.Now,
	}
}

// SetClock replaces the time source
func (n *Notifier) SetClock(now func() time.Time) {
	n.now = now
}

// Register binds every job handler to the pool
func (n *Notifier) Register(p *Pool) {
	p.Handle(queue.JobReservationConfirmed, n.ReservationConfirmed)
	p.Handle(queue.JobReservationReleased, n.ReservationReleased)
	p.Handle(queue.JobDailyReminders, n.DailyReminders)
	p.Handle(queue.JobMonthlyReports, n.MonthlyReports)
}

type reservationContext struct {
	reservation *models.ReservedParking
	user        *models.User
	lot         *models.ParkingLot
}

func (n *Notifier) loadReservation(id uint) (*reservationContext, error) {
	reservation, err := n.reservationRepo.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("reservation %d: %w", id, err)
	}
	user, err := n.userRepo.GetByID(reservation.UserID)
	if err != nil {
		return nil, fmt.Errorf("user %d: %w", reservation.UserID, err)
	}
	spot, err := n.spotRepo.GetByID(reservation.SpotID)
	if err != nil {
		return nil, fmt.Errorf("spot %d: %w", reservation.SpotID, err)
	}
	lot, err := n.lotRepo.GetByID(spot.LotID)
	if err != nil {
		return nil, fmt.Errorf("lot %d: %w", spot.LotID, err)
	}
	return &reservationContext{reservation: reservation, user: user, lot: lot}, nil
}

func (n *Notifier) reservationData(rc *reservationContext) mailer.ReservationData {
	return mailer.ReservationData{
		UserName:    rc.user.Name,
		Username:    rc.user.Username,
		SpotID:      rc.reservation.SpotID,
		LotName:     rc.lot.PrimeLocationName,
		LotPrice:    rc.lot.Price,
		ParkTime:    rc.reservation.ParkTime,
		ExitTime:    rc.reservation.ExitTime,
		TotalCost:   rc.reservation.TotalCost,
		CurrentYear: n.now().Year(),
	}
}

// ReservationConfirmed mails the owner of a new reservation
func (n *Notifier) ReservationConfirmed(ctx context.Context, job *queue.Job) error {
	rc, err := n.loadReservation(job.ReservationID)
	if err != nil {
		return err
	}
	html, err := n.renderer.Render(mailer.TemplateReservation, n.reservationData(rc))
	if err != nil {
		return err
	}
	return n.sender.Send(ctx, &mailer.Message{
		To:      rc.user.Email,
		Subject: fmt.Sprintf("Reservation for Spot %d has been confirmed", rc.reservation.SpotID),
		HTML:    html,
	})
}

// ReservationReleased mails the owner of a released reservation with its cost
func (n *Notifier) ReservationReleased(ctx context.Context, job *queue.Job) error {
	rc, err := n.loadReservation(job.ReservationID)
	if err != nil {
		return err
	}
	html, err := n.renderer.Render(mailer.TemplateRelease, n.reservationData(rc))
	if err != nil {
		return err
	}
	return n.sender.Send(ctx, &mailer.Message{
		To:      rc.user.Email,
		Subject: fmt.Sprintf("Reservation for Spot %d has been released", rc.reservation.SpotID),
		HTML:    html,
	})
}

// DailyReminders mails every regular user who has not logged in for a day.
// A failed send is logged and the remaining users are still mailed.
func (n *Notifier) DailyReminders(ctx context.Context, _ *queue.Job) error {
	now := n.now()
	users, err := n.userRepo.ListInactiveSince(now.Add(-reminderInactivity))
	if err != nil {
		return err
	}

	sent := 0
	for _, u := range users {
		html, err := n.renderer.Render(mailer.TemplateDailyReminder, mailer.ReminderData{
			UserName:    u.Name,
			CurrentYear: now.Year(),
		})
		if err != nil {
			return err
		}
		if err := n.sender.Send(ctx, &mailer.Message{To: u.Email, Subject: "Daily Reminder", HTML: html}); err != nil {
			log.Printf("[Notifier] daily reminder to %s failed: %v", u.Username, err)
			continue
		}
		sent++
	}
	log.Printf("[Notifier] daily reminders sent: %d/%d", sent, len(users))
	return nil
}

// MonthlyReports mails each user a summary of the reservations parked in the
// last 30 days, with the same rows attached as CSV
func (n *Notifier) MonthlyReports(ctx context.Context, _ *queue.Job) error {
	now := n.now()
	reservations, err := n.reservationRepo.ListParkedBetween(now.Add(-reportWindow), now)
	if err != nil {
		return err
	}

	var order []uint
	byUser := make(map[uint][]models.ReservedParking)
	for _, r := range reservations {
		if _, ok := byUser[r.UserID]; !ok {
			order = append(order, r.UserID)
		}
		byUser[r.UserID] = append(byUser[r.UserID], r)
	}

	for _, userID := range order {
		user, err := n.userRepo.GetByID(userID)
		if err != nil {
			log.Printf("[Notifier] monthly report skipped for user %d: %v", userID, err)
			continue
		}
		if err := n.sendMonthlyReport(ctx, user, byUser[userID], now); err != nil {
			log.Printf("[Notifier] monthly report to %s failed: %v", user.Username, err)
		}
	}
	return nil
}

func (n *Notifier) sendMonthlyReport(ctx context.Context, user *models.User, reservations []models.ReservedParking, now time.Time) error {
	lines, err := service.ReportLines(n.spotRepo, reservations)
	if err != nil {
		return err
	}

	rows := make([]mailer.ReportRow, len(lines))
	for i, l := range lines {
		rows[i] = mailer.ReportRow{
			ID:        l.ReservationID,
			SpotID:    l.SpotID,
			LotName:   l.LotName,
			ParkTime:  l.ParkTime,
			ExitTime:  l.ExitTime,
			TotalCost: l.TotalCost,
		}
	}
	html, err := n.renderer.Render(mailer.TemplateMonthlyReport, mailer.MonthlyReportData{
		UserName:     user.Name,
		Reservations: rows,
		CurrentYear:  now.Year(),
	})
	if err != nil {
		return err
	}

	csvData, err := report.CSV(lines)
	if err != nil {
		return err
	}

	return n.sender.Send(ctx, &mailer.Message{
		To:      user.Email,
		Subject: fmt.Sprintf("Your Monthly Parking Report - %s - ParkPal", user.Name),
		HTML:    html,
		Attachments: []mailer.Attachment{{
			Filename:    MonthlyReportFilename(user.Username, now),
			ContentType: "text/csv",
			Data:        csvData,
		}},
	})
}

// MonthlyReportFilename names the CSV attachment of a monthly report
func MonthlyReportFilename(username string, t time.Time) string {
	return fmt.Sprintf("monthly_report_%s_%s.csv", username, t.Format("2006-01"))
}
