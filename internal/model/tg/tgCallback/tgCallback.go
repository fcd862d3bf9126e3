package tgCallback

const (
	ResetConfirm   = "reset_confirm"
	ResetCancel    = "reset_cancel"
	DelAlertPrefix = "del_alert_"
)
