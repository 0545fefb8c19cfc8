package models

type EEventLogType string

const (
	LoginSucceeded        EEventLogType = "Login succeeded"
	LoginFailed           EEventLogType = "Login failed"
	SettingsCreated       EEventLogType = "Settings created"
	SettingsUpdated       EEventLogType = "Settings updated"
	TwoFactorSecretIssued EEventLogType = "Two-factor secret issued"
	TwoFactorEnabled      EEventLogType = "Two-factor enabled"
	TwoFactorDisabled     EEventLogType = "Two-factor disabled"
	BackupCodeUsed        EEventLogType = "Backup code used"
	AssetUploaded         EEventLogType = "Asset uploaded"
	PendingSecretsPurged  EEventLogType = "Pending secrets purged"
	Warning               EEventLogType = "Warning"
)
