// Package ingest normalizes raw booking-confirmation emails into canonical
// domain.Booking records. Platform notification formats drift, so the
// extraction is deliberately pattern-based and forgiving: several phrasings
// per field, several date formats, first match wins.
package ingest

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkaratz/go-calsync-backend/internal/domain"
)

// ErrUnparseable is returned when no platform can be detected or no date
// range can be extracted from the notification.
var ErrUnparseable = errors.New("could not parse booking from notification")

// datePatterns cover the formats seen in Airbnb and Booking.com mail:
// "Dec 15, 2025", "15 Dec 2025", "2025-12-15", "12/15/2025".
var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?P<month>Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+(?P<day>\d{1,2}),?\s+(?P<year>\d{4})`),
	regexp.MustCompile(`(?i)(?P<day>\d{1,2})\s+(?P<month>Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+(?P<year>\d{4})`),
	regexp.MustCompile(`(?P<year>\d{4})-(?P<month>\d{2})-(?P<day>\d{2})`),
	regexp.MustCompile(`(?P<month>\d{1,2})/(?P<day>\d{1,2})/(?P<year>\d{4})`),
}

var monthMap = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// Field phrasings per platform. The optional "weekday," prefix handles
// Booking.com's "Check-in: Thursday, December 15, 2025".
var (
	checkinPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?im)check[- ]?in[:\s]+(?:[A-Za-z]+,\s*)?(.+?)(?:\n|check|from|$)`),
		regexp.MustCompile(`(?im)arriv(?:es?|al)[:\s]+(?:[A-Za-z]+,\s*)?(.+?)(?:\n|$)`),
	}
	checkoutPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?im)check[- ]?out[:\s]+(?:[A-Za-z]+,\s*)?(.+?)(?:\n|check|from|$)`),
		regexp.MustCompile(`(?im)depart(?:s?|ure)[:\s]+(?:[A-Za-z]+,\s*)?(.+?)(?:\n|$)`),
	}

	airbnbConfirmation  = regexp.MustCompile(`(?i)confirmation[:\s]+([A-Z0-9]+)`)
	bookingConfirmation = regexp.MustCompile(`(?i)booking(?:\s+number)?[:\s]+(\d+)`)
	guestName           = regexp.MustCompile(`(?i:guest(?:\s+name)?)[:\s]+([A-Z][a-z]+(?: [A-Z][a-z]+)?)`)
	propertyID          = regexp.MustCompile(`(?i)(?:listing|property)\s+id[:\s]+([A-Za-z0-9_-]+)`)
)

// ParseEmail determines the source platform from the notification text and
// extracts the booking details. The returned Booking still goes through
// domain validation at admission; a missing confirmation code is reported
// there, not here.
func ParseEmail(body, subject string) (*domain.Booking, error) {
	haystack := strings.ToLower(body + "\n" + subject)

	switch {
	case strings.Contains(haystack, "airbnb"):
		return parsePlatform(body, domain.PlatformAirbnb, airbnbConfirmation)
	case strings.Contains(haystack, "booking.com"):
		return parsePlatform(body, domain.PlatformBooking, bookingConfirmation)
	}
	return nil, ErrUnparseable
}

func parsePlatform(body string, platform domain.Platform, confirmation *regexp.Regexp) (*domain.Booking, error) {
	checkin, okIn := firstDate(body, checkinPatterns)
	checkout, okOut := firstDate(body, checkoutPatterns)
	if !okIn || !okOut {
		return nil, ErrUnparseable
	}

	b := &domain.Booking{
		SourcePlatform: platform,
		Checkin:        checkin,
		Checkout:       checkout,
	}
	if m := confirmation.FindStringSubmatch(body); m != nil {
		b.ConfirmationCode = m[1]
	}
	if m := guestName.FindStringSubmatch(body); m != nil {
		b.GuestName = m[1]
	}
	if m := propertyID.FindStringSubmatch(body); m != nil {
		b.PropertyID = m[1]
	}
	return b, nil
}

// firstDate runs the field phrasings in order and returns the first
// extractable date.
func firstDate(body string, patterns []*regexp.Regexp) (time.Time, bool) {
	for _, p := range patterns {
		m := p.FindStringSubmatch(body)
		if m == nil {
			continue
		}
		if d, ok := extractDate(m[1]); ok {
			return d, true
		}
	}
	return time.Time{}, false
}

// extractDate tries every known date format against the captured fragment.
func extractDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, p := range datePatterns {
		m := p.FindStringSubmatch(s)
		if m == nil {
			continue
		}

		parts := map[string]string{}
		for i, name := range p.SubexpNames() {
			if name != "" && i < len(m) {
				parts[name] = m[i]
			}
		}

		var month time.Month
		if mm, err := strconv.Atoi(parts["month"]); err == nil {
			month = time.Month(mm)
		} else {
			month = monthMap[strings.ToLower(parts["month"])[:3]]
		}
		day, _ := strconv.Atoi(parts["day"])
		year, _ := strconv.Atoi(parts["year"])

		if month < time.January || month > time.December || day < 1 || day > 31 {
			continue
		}
		d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
		// Reject overflowed dates like Feb 30.
		if d.Day() != day || d.Month() != month {
			continue
		}
		return d, true
	}
	return time.Time{}, false
}
