package domain

import "time"

// Event names. The set is closed; anything else fails the taxonomy check.
const (
	EventSignupStarted        = "auth_signup_started"
	EventSignupSubmitted      = "auth_signup_submitted"
	EventSignupCompleted      = "auth_signup_completed"
	EventLoginAttempted       = "auth_login_attempted"
	EventLoginCompleted       = "auth_login_completed"
	EventIdentityVerified     = "auth_identity_verified"
	EventTransferStarted      = "payment_transfer_started"
	EventTransferAmount       = "payment_transfer_amount_entered"
	EventTransferConfirmed    = "payment_transfer_confirmed"
	EventTransferCompleted    = "payment_transfer_completed"
	EventTransferFailed       = "payment_transfer_failed"
	EventChargeCompleted      = "payment_charge_completed"
	EventWithdrawCompleted    = "payment_withdraw_completed"
	EventQRScanned            = "payment_qr_scanned"
	EventQRCompleted          = "payment_qr_completed"
	EventProductListViewed    = "product_list_viewed"
	EventProductDetailViewed  = "product_detail_viewed"
	EventProductCompared      = "product_compared"
	EventProductApplied       = "product_applied"
	EventProductApplicationOK = "product_application_completed"
	EventScreenViewed         = "screen_viewed"
	EventScreenExited         = "screen_exited"
	EventTabClicked           = "screen_tab_clicked"
	EventBannerClicked        = "screen_banner_clicked"
	EventSearchPerformed      = "screen_search_performed"
	EventSystemError          = "system_error_occurred"
	EventPushReceived         = "system_push_received"
	EventPushClicked          = "system_push_clicked"
)

// EventTaxonomy is the closed set of valid event names, in catalogue order.
var EventTaxonomy = []string{
	EventSignupStarted, EventSignupSubmitted, EventSignupCompleted,
	EventLoginAttempted, EventLoginCompleted, EventIdentityVerified,
	EventTransferStarted, EventTransferAmount, EventTransferConfirmed,
	EventTransferCompleted, EventTransferFailed, EventChargeCompleted,
	EventWithdrawCompleted, EventQRScanned, EventQRCompleted,
	EventProductListViewed, EventProductDetailViewed, EventProductCompared,
	EventProductApplied, EventProductApplicationOK,
	EventScreenViewed, EventScreenExited, EventTabClicked,
	EventBannerClicked, EventSearchPerformed,
	EventSystemError, EventPushReceived, EventPushClicked,
}

// IsKnownEvent reports whether name belongs to the taxonomy.
func IsKnownEvent(name string) bool {
	for _, n := range EventTaxonomy {
		if n == name {
			return true
		}
	}
	return false
}

// Event is one behavioral record. Envelope fields are copied from the
// owning user; Properties carries the event-specific payload.
type Event struct {
	EventID        string         `json:"event_id"`
	EventName      string         `json:"event_name"`
	EventTimestamp time.Time      `json:"event_timestamp"`
	ReceivedAt     time.Time      `json:"received_at"`
	UserID         string         `json:"user_id"`
	SessionID      string         `json:"session_id"`
	DeviceID       string         `json:"device_id"`
	Platform       Platform       `json:"platform"`
	AppVersion     string         `json:"app_version"`
	OSVersion      string         `json:"os_version"`
	DeviceModel    string         `json:"device_model"`
	Properties     map[string]any `json:"event_properties"`
}
