// Package projector maps calculator snapshots into the public status object.
// The projection is numberless: no counts, percentages, or capacity constants
// ever cross this boundary, so scraping the status endpoint reveals nothing
// about occupancy beyond the coarse status.
package projector

import "examgate/internal/capacity/models"

// Message pairs the Thai user-facing text with its English counterpart.
type Message struct {
	TH string
	EN string
}

var (
	msgFull = Message{
		TH: "รอบสอบนี้เต็มแล้ว",
		EN: "Session is full",
	}
	msgFreeExhausted = Message{
		TH: "แพ็กเกจฟรีเต็มแล้ว เหลือเฉพาะแพ็กเกจ Advanced",
		EN: "Free package full - only Advanced package available",
	}
	msgLimited = Message{
		TH: "ที่นั่งเหลือจำนวนจำกัด",
		EN: "Limited seats remaining",
	}
	msgAvailable = Message{
		TH: "ยังมีที่นั่งว่าง",
		EN: "Seats available",
	}
	msgUnknown = Message{
		TH: "ไม่สามารถตรวจสอบที่นั่งได้ชั่วคราว กรุณาลองอีกครั้ง",
		EN: "Seat availability temporarily unknown - please try again",
	}
)

// Project renders a snapshot into the public status object. Message selection
// follows a fixed priority order; the first matching rule wins.
func Project(snap models.Snapshot) models.UIStatus {
	var msg Message
	switch {
	case snap.IsFull:
		msg = msgFull
	case !snap.FreeSlotsAvailable && snap.AdvancedSlotsAvailable:
		msg = msgFreeExhausted
	case snap.AvailabilityStatus == models.StatusLimited:
		msg = msgLimited
	default:
		msg = msgAvailable
	}

	return models.UIStatus{
		AvailabilityStatus:  snap.AvailabilityStatus,
		Message:             msg.TH,
		MessageEN:           msg.EN,
		CanRegisterFree:     snap.FreeSlotsAvailable,
		CanRegisterAdvanced: snap.AdvancedSlotsAvailable,
		ShowDisabledState:   snap.IsFull,
	}
}

// Fallback is served when the ledger cannot be read. It keeps the
// registration UI usable without promising a seat: both tiers stay enabled
// (the write path re-validates) and the message says availability is unknown.
func Fallback() models.UIStatus {
	return models.UIStatus{
		AvailabilityStatus:  models.StatusAvailable,
		Message:             msgUnknown.TH,
		MessageEN:           msgUnknown.EN,
		CanRegisterFree:     true,
		CanRegisterAdvanced: true,
		ShowDisabledState:   false,
	}
}
