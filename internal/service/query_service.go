package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/parkpal-server/internal/cache"
	"github.com/parkpal-server/internal/models"
	"github.com/parkpal-server/internal/report"
	"github.com/parkpal-server/internal/repository"
)

// SearchTimeLayout formats park and exit times in search results
const SearchTimeLayout = "2006-01-02 15:04"

// QueryService serves the read side. Results go through the read-through
// cache and are dropped whenever ParkingService or UserService writes.
type QueryService struct {
	userRepo        *repository.UserRepository
	locationRepo    *repository.LocationRepository
	lotRepo         *repository.LotRepository
	spotRepo        *repository.SpotRepository
	reservationRepo *repository.ReservationRepository
	cache           *cache.Cache
}

// NewQueryService creates a new QueryService. cache may be nil.
func NewQueryService(
	userRepo *repository.UserRepository,
	locationRepo *repository.LocationRepository,
	lotRepo *repository.LotRepository,
	spotRepo *repository.SpotRepository,
	reservationRepo *repository.ReservationRepository,
	c *cache.Cache,
) *QueryService {
	return &QueryService{
		userRepo:        userRepo,
		locationRepo:    locationRepo,
		lotRepo:         lotRepo,
		spotRepo:        spotRepo,
		reservationRepo: reservationRepo,
		cache:           c,
	}
}

// LotsView lists lots with every spot
type LotsView struct {
	Lots  []models.ParkingLot  `json:"lots"`
	Spots []models.ParkingSpot `json:"spots"`
}

// AdminLotsView adds every reservation to LotsView
type AdminLotsView struct {
	Lots          []models.ParkingLot      `json:"lots"`
	Spots         []models.ParkingSpot     `json:"spots"`
	ReservedSpots []models.ReservedParking `json:"reservedSpots"`
}

// AdminSummary is the admin dashboard payload
type AdminSummary struct {
	Lots         []models.ParkingLot      `json:"lots"`
	Spots        []models.ParkingSpot     `json:"spots"`
	Reservations []models.ReservedParking `json:"reservations"`
	Users        []models.User            `json:"users"`
}

// UserSummary is the user dashboard payload
type UserSummary struct {
	Lots         []models.ParkingLot      `json:"lots"`
	Spots        []models.ParkingSpot     `json:"spots"`
	Reservations []models.ReservedParking `json:"reservations"`
}

// UserReservationsView lists a user's reservations with the catalogue
type UserReservationsView struct {
	Lots         []models.ParkingLot      `json:"lots"`
	Spots        []models.ParkingSpot     `json:"spots"`
	Locations    []models.Location        `json:"locations"`
	Reservations []models.ReservedParking `json:"reservations"`
}

// UserRow is a user search hit
type UserRow struct {
	ID       uint   `json:"ID"`
	Name     string `json:"Name"`
	Username string `json:"Username"`
	Email    string `json:"Email"`
}

// LotRow is a lot search hit
type LotRow struct {
	ID       uint    `json:"ID"`
	Location string  `json:"Location"`
	Address  string  `json:"Address"`
	Pin      string  `json:"Pin"`
	Price    float64 `json:"Price"`
}

// ReservationRow is a reservation search hit.
// TotalCost is a formatted string for admins and a number for users.
type ReservationRow struct {
	ID        uint        `json:"ID"`
	UserID    uint        `json:"User ID"`
	SpotID    uint        `json:"Spot ID"`
	ParkTime  string      `json:"Park Time"`
	ExitTime  string      `json:"Exit Time"`
	TotalCost interface{} `json:"Total Cost"`
}

// SearchResult groups search hits by entity
type SearchResult struct {
	Users        []UserRow        `json:"users,omitempty"`
	Lots         []LotRow         `json:"lots"`
	Reservations []ReservationRow `json:"reservations"`
}

// Locations lists all locations with their lots
func (s *QueryService) Locations(ctx context.Context) ([]models.Location, error) {
	return cache.Remember(ctx, s.cache, "locations", s.locationRepo.ListWithLots)
}

// Lots lists all lots and spots
func (s *QueryService) Lots(ctx context.Context) (*LotsView, error) {
	return cache.Remember(ctx, s.cache, "lots", func() (*LotsView, error) {
		lots, err := s.lotRepo.List()
		if err != nil {
			return nil, err
		}
		spots, err := s.spotRepo.List()
		if err != nil {
			return nil, err
		}
		return &LotsView{Lots: lots, Spots: spots}, nil
	})
}

// AdminParkingLots lists all lots, spots and reservations
func (s *QueryService) AdminParkingLots(ctx context.Context) (*AdminLotsView, error) {
	return cache.Remember(ctx, s.cache, "admin:parking_lots", func() (*AdminLotsView, error) {
		lots, err := s.lotRepo.List()
		if err != nil {
			return nil, err
		}
		spots, err := s.spotRepo.List()
		if err != nil {
			return nil, err
		}
		reservations, err := s.reservationRepo.List()
		if err != nil {
			return nil, err
		}
		return &AdminLotsView{Lots: lots, Spots: spots, ReservedSpots: reservations}, nil
	})
}

// SpotsInLot lists the spots of a lot
func (s *QueryService) SpotsInLot(ctx context.Context, lotID uint) ([]models.ParkingSpot, error) {
	return cache.Remember(ctx, s.cache, fmt.Sprintf("lot:%d:spots", lotID), func() ([]models.ParkingSpot, error) {
		return s.spotRepo.ListByLot(lotID)
	})
}

// AvailableSpots counts the free spots of a lot. It is never cached.
func (s *QueryService) AvailableSpots(lotID uint) (int64, error) {
	return s.spotRepo.CountAvailableByLot(lotID)
}

// AdminSummary returns everything the admin dashboard charts
func (s *QueryService) AdminSummary(ctx context.Context) (*AdminSummary, error) {
	lots, err := s.lotRepo.List()
	if err != nil {
		return nil, err
	}
	spots, err := s.spotRepo.List()
	if err != nil {
		return nil, err
	}
	reservations, err := s.reservationRepo.List()
	if err != nil {
		return nil, err
	}
	users, err := s.userRepo.ListRegular()
	if err != nil {
		return nil, err
	}
	return &AdminSummary{Lots: lots, Spots: spots, Reservations: reservations, Users: users}, nil
}

// UserSummary returns the catalogue and the user's own reservations
func (s *QueryService) UserSummary(ctx context.Context, userID uint) (*UserSummary, error) {
	lots, err := s.lotRepo.List()
	if err != nil {
		return nil, err
	}
	spots, err := s.spotRepo.List()
	if err != nil {
		return nil, err
	}
	reservations, err := s.reservationRepo.ListByUser(userID)
	if err != nil {
		return nil, err
	}
	return &UserSummary{Lots: lots, Spots: spots, Reservations: reservations}, nil
}

// UserReservations returns the reservations of username. Users may only
// look up their own reservations.
func (s *QueryService) UserReservations(ctx context.Context, requesterID uint, username string) (*UserReservationsView, error) {
	user, err := s.userRepo.GetByUsername(username)
	if err != nil {
		return nil, translate(err)
	}
	if user.ID != requesterID {
		return nil, forbiddenf("You can only view your own reservations")
	}

	return cache.Remember(ctx, s.cache, fmt.Sprintf("user:%d:reservations", user.ID), func() (*UserReservationsView, error) {
		lots, err := s.lotRepo.List()
		if err != nil {
			return nil, err
		}
		spots, err := s.spotRepo.List()
		if err != nil {
			return nil, err
		}
		locations, err := s.locationRepo.ListWithLots()
		if err != nil {
			return nil, err
		}
		reservations, err := s.reservationRepo.ListByUser(user.ID)
		if err != nil {
			return nil, err
		}
		return &UserReservationsView{Lots: lots, Spots: spots, Locations: locations, Reservations: reservations}, nil
	})
}

// AdminSearch matches users, lots and reservations against query.
// The query "all" returns everything.
func (s *QueryService) AdminSearch(ctx context.Context, query string) (*SearchResult, error) {
	query = strings.ToLower(strings.TrimSpace(query))

	return cache.Remember(ctx, s.cache, "admin:search:"+query, func() (*SearchResult, error) {
		matchAll := query == "all"
		result := &SearchResult{
			Users:        []UserRow{},
			Lots:         []LotRow{},
			Reservations: []ReservationRow{},
		}

		users, err := s.userRepo.ListRegular()
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			if matchAll || containsAny(query, u.Name, u.Username, u.Email) {
				result.Users = append(result.Users, UserRow{ID: u.ID, Name: u.Name, Username: u.Username, Email: u.Email})
			}
		}

		lots, err := s.lotRepo.List()
		if err != nil {
			return nil, err
		}
		for _, l := range lots {
			if matchAll || containsAny(query, l.PrimeLocationName, l.Address, l.PinCode) {
				result.Lots = append(result.Lots, toLotRow(l))
			}
		}

		reservations, err := s.reservationRepo.List()
		if err != nil {
			return nil, err
		}
		for _, r := range reservations {
			if matchAll || containsAny(query, uintString(r.UserID), uintString(r.SpotID), uintString(r.ID)) {
				row := toReservationRow(r)
				if r.TotalCost != nil {
					row.TotalCost = report.FormatCost(r.TotalCost)
				}
				result.Reservations = append(result.Reservations, row)
			}
		}

		return result, nil
	})
}

// UserSearch matches lots and the user's own reservations against query
func (s *QueryService) UserSearch(ctx context.Context, userID uint, query string) (*SearchResult, error) {
	query = strings.ToLower(strings.TrimSpace(query))

	return cache.Remember(ctx, s.cache, fmt.Sprintf("user:%d:search:%s", userID, query), func() (*SearchResult, error) {
		result := &SearchResult{
			Lots:         []LotRow{},
			Reservations: []ReservationRow{},
		}

		lots, err := s.lotRepo.List()
		if err != nil {
			return nil, err
		}
		for _, l := range lots {
			if containsAny(query, l.PrimeLocationName, l.Address, l.PinCode, floatString(l.Price)) {
				result.Lots = append(result.Lots, toLotRow(l))
			}
		}

		reservations, err := s.reservationRepo.ListByUser(userID)
		if err != nil {
			return nil, err
		}
		for _, r := range reservations {
			fields := []string{uintString(r.ID), uintString(r.UserID), uintString(r.SpotID),
				strings.ToLower(r.ParkTime.Format(SearchTimeLayout))}
			if r.ExitTime != nil {
				fields = append(fields, strings.ToLower(r.ExitTime.Format(SearchTimeLayout)))
			}
			if r.TotalCost != nil {
				fields = append(fields, floatString(*r.TotalCost))
			}
			if containsAny(query, fields...) {
				row := toReservationRow(r)
				if r.TotalCost != nil {
					row.TotalCost = *r.TotalCost
				}
				result.Reservations = append(result.Reservations, row)
			}
		}

		return result, nil
	})
}

// ReservationReport resolves every reservation into a report line
func (s *QueryService) ReservationReport(ctx context.Context) ([]report.Line, error) {
	reservations, err := s.reservationRepo.List()
	if err != nil {
		return nil, err
	}
	return ReportLines(s.spotRepo, reservations)
}

// ReportLines resolves the lot name of each reservation's spot
func ReportLines(spotRepo *repository.SpotRepository, reservations []models.ReservedParking) ([]report.Line, error) {
	spotIDs := make([]uint, 0, len(reservations))
	for _, r := range reservations {
		spotIDs = append(spotIDs, r.SpotID)
	}
	names, err := spotRepo.LotNamesBySpot(spotIDs)
	if err != nil {
		return nil, err
	}

	lines := make([]report.Line, len(reservations))
	for i, r := range reservations {
		lines[i] = report.Line{
			ReservationID: r.ID,
			SpotID:        r.SpotID,
			LotName:       names[r.SpotID],
			ParkTime:      r.ParkTime,
			ExitTime:      r.ExitTime,
			TotalCost:     r.TotalCost,
		}
	}
	return lines, nil
}

func toLotRow(l models.ParkingLot) LotRow {
	return LotRow{ID: l.ID, Location: l.PrimeLocationName, Address: l.Address, Pin: l.PinCode, Price: l.Price}
}

func toReservationRow(r models.ReservedParking) ReservationRow {
	return ReservationRow{
		ID:       r.ID,
		UserID:   r.UserID,
		SpotID:   r.SpotID,
		ParkTime: report.FormatTime(&r.ParkTime, SearchTimeLayout),
		ExitTime: report.FormatTime(r.ExitTime, SearchTimeLayout),
	}
}

func containsAny(query string, fields ...string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), query) {
			return true
		}
	}
	return false
}

func uintString(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}

func floatString(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
