package enums

import "fmt"

// ReservationStatus maps to the reservation_status enum in Postgres.
type ReservationStatus string

const (
	ReservationStatusHeld      ReservationStatus = "held"
	ReservationStatusCommitted ReservationStatus = "committed"
	ReservationStatusReleased  ReservationStatus = "released"
)

var validReservationStatuses = []ReservationStatus{
	ReservationStatusHeld,
	ReservationStatusCommitted,
	ReservationStatusReleased,
}

// IsValid reports whether the value matches the canonical reservation_status enum.
func (s ReservationStatus) IsValid() bool {
	for _, candidate := range validReservationStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseReservationStatus converts raw input into ReservationStatus.
func ParseReservationStatus(value string) (ReservationStatus, error) {
	for _, candidate := range validReservationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid reservation status %q", value)
}
