package i18n

// Message IDs shared by the service and HTTP layers.
const (
	MsgOK               = "ok"
	MsgInvalidRequest   = "invalid_request"
	MsgUnauthorized     = "unauthorized"
	MsgForbidden        = "forbidden"
	MsgRateLimited      = "rate_limited"
	MsgInternalError    = "internal_error"
	MsgRouteNotFound    = "route_not_found"
	MsgMethodNotAllowed = "method_not_allowed"
	MsgServiceUnready   = "service_unready"

	MsgCardIdentityInvalid  = "card_identity_invalid"
	MsgCardNotFound         = "card_not_found"
	MsgCardInvalid          = "card_invalid"
	MsgCardScanned          = "card_scanned"
	MsgPINAlreadySet        = "pin_already_set"
	MsgFirstLoginCompleted  = "first_login_completed"
	MsgFirstLoginRequired   = "first_login_required"
	MsgPINVerified          = "pin_verified"
	MsgPINMismatch          = "pin_mismatch"
	MsgPINRequired          = "pin_required"
	MsgPINUpdated           = "pin_updated"
	MsgRecoveryPending      = "recovery_pending"
	MsgRecoveryCodeSent     = "recovery_code_sent"
	MsgRecoveryNoRequest    = "recovery_no_request"
	MsgRecoveryCodeMismatch = "recovery_code_mismatch"
	MsgRecoveryCodeVerified = "recovery_code_verified"
	MsgResetTokenInvalid    = "reset_token_invalid"

	MsgRedemptionOTPDisabled   = "redemption_otp_disabled"
	MsgRedemptionRedeemed      = "redemption_already_redeemed"
	MsgRedemptionPending       = "redemption_pending"
	MsgRedemptionCodeSent      = "redemption_code_sent"
	MsgRedemptionNoActiveOffer = "redemption_no_active_offer"
	MsgRedemptionCodeMismatch  = "redemption_code_mismatch"
	MsgRedemptionVerified      = "redemption_verified"
	MsgScanNoTransaction       = "scan_no_transaction"
	MsgScanAccepted            = "scan_accepted"
	MsgScanNotAccepted         = "scan_not_accepted"

	MsgCardCreated         = "card_created"
	MsgCardActivated       = "card_activated"
	MsgCardDeactivated     = "card_deactivated"
	MsgCardRemoved         = "card_removed"
	MsgCardAlreadyActive   = "card_already_active"
	MsgCardAlreadyInactive = "card_already_inactive"
	MsgQRCodesListed       = "qr_codes_listed"

	MsgIdempotencyConflict   = "idempotency_conflict"
	MsgIdempotencyInProgress = "idempotency_in_progress"
)
