package service

import "time"

// ReservationCost bills a stay on a lot priced pricePerHour.
//
// The hourly charge is itself scaled by the elapsed hours before being
// multiplied by them again, so the cost grows with the square of the stay:
// 10/h for 2h bills 40.
// TODO: bill price*hours once the linear rate is confirmed by product.
//
// Non-positive durations bill nothing. The result is not rounded.
func ReservationCost(pricePerHour float64, parkTime, exitTime time.Time) float64 {
	seconds := exitTime.Sub(parkTime).Seconds()
	if seconds <= 0 {
		return 0
	}
	chargePerHour := pricePerHour * seconds / 3600
	return seconds / 3600 * chargePerHour
}
