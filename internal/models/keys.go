package models

// Local store keys. The names match what earlier site versions wrote to browser storage so an
// exported store can be loaded as-is.
const (
	KeyUsers               = "sms_users"
	KeyCurrentUser         = "sms_current_user"
	KeyAdminPassword       = "sms_admin_password"
	KeyAdminPasswordSynced = "sms_admin_password_last_synced"
	KeyLastStudentIndex    = "sms_last_student_index"
	KeyAttendance          = "sms_attendance"
	KeySettings            = "sms_settings"
	KeyStorageMode         = "sms_storage_mode"
	KeyAdminLoggedIn       = "sms_admin_logged_in"
	KeyAdminLoginTime      = "sms_admin_login_time"
	KeyLastLoginMode       = "lastLoginMode"

	// KeySessionAdminLoggedIn lives in the session-scoped store only.
	KeySessionAdminLoggedIn = "adminLoggedIn"

	// Legacy aliases read by the one-time migration.
	LegacyKeyAdminPassword      = "admin_password"
	LegacyKeyAdminPasswordUpper = "ADMIN_PASSWORD"
	LegacyKeyUseFirebase        = "useFirebase"
)

// LegacyAdminPasswordKeys lists the alias locations in lookup order after the canonical key.
var LegacyAdminPasswordKeys = []string{LegacyKeyAdminPassword, LegacyKeyAdminPasswordUpper}

// KeyAdminPasswordModified records when the local admin digest last changed.
const KeyAdminPasswordModified = "sms_admin_password_last_modified"
