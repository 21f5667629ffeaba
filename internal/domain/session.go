package domain

// Role - роль в профиле
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// DefaultDevice - установка клиента, который не передал свой идентификатор
const DefaultDevice = "default"

// Actor - аутентифицированный пользователь, от имени которого идёт операция
type Actor struct {
	UID    string `json:"uid"`
	Admin  bool   `json:"admin"`
	Device string `json:"device,omitempty"`
}

// DeviceKey - адрес установки: рантайм, хранилище устройства, отзыв токенов
func (a Actor) DeviceKey() string {
	return DeviceKey(a.UID, a.Device)
}

// NormalizeDevice подставляет DefaultDevice вместо пустого идентификатора
func NormalizeDevice(device string) string {
	if device == "" {
		return DefaultDevice
	}
	return device
}

func DeviceKey(uid, device string) string {
	return uid + "/" + NormalizeDevice(device)
}

// Profile - удалённая запись пользователя
type Profile struct {
	UID          string   `json:"uid" db:"uid"`
	Username     string   `json:"username" db:"username"`
	LicensePlate string   `json:"licensePlate" db:"license_plate"`
	UserType     UserType `json:"userType" db:"user_type"`
	Role         Role     `json:"role" db:"role"`
	Status       string   `json:"status" db:"status"`
	CanSee213    bool     `json:"canSee213" db:"can_see_213"`
	SessionToken int64    `json:"sessionToken" db:"session_token"`
}

// Member собирает запись очереди из профиля
func (p Profile) Member(checkInTime string) QueueMember {
	return QueueMember{
		UID:          p.UID,
		Username:     p.Username,
		LicensePlate: p.LicensePlate,
		UserType:     p.UserType,
		CheckInTime:  checkInTime,
	}
}

// CheckoutMemento - снимок последнего собственного checkout для «огонька»
type CheckoutMemento struct {
	QueueName string      `json:"queueName"`
	Member    QueueMember `json:"member"`
	Index     int         `json:"index"`
	Field     QueueField  `json:"field"`
}

// ActiveCheckinRecord - durable запись об активном check-in, читается фоновой задачей
type ActiveCheckinRecord struct {
	QueueName       string `json:"locationName"`
	GeofenceZone    string `json:"geofenceName"`
	UID             string `json:"uid"`
	EnforceGeofence bool   `json:"enforceGeofence"`
}

// Ключи durable хранилища устройства
const (
	KeyActiveCheckin      = "active_checkin_data"
	KeyFirstOutside       = "FIRST_OUTSIDE_TIMESTAMP"
	KeyIsAdmin            = "IS_ADMIN"
	KeyMockedLocation     = "IS_MOCKED_LOCATION"
	KeyUserID             = "USER_ID"
	KeyDeviceID           = "DEVICE_ID"
	KeySessionToken       = "sessionId"
	KeyLastActivity       = "last_activity_timestamp"
	KeyHeartbeatPending   = "heartbeat_pending"
	KeyForeground         = "app_foreground"
	KeyForegroundGranted  = "permission_foreground"
	KeyBackgroundGranted  = "permission_background"
	KeyTrackingRegistered = "tracking_registered"
)
