package domain

import (
	"fmt"
	"strings"
)

// UserType - категория автомобиля водителя
type UserType string

const (
	UserTypeTaxi      UserType = "Taxi"
	UserTypeKombiTaxi UserType = "Kombi Taxi"
	UserTypeVIP       UserType = "VIP"
	UserTypeVIPKombi  UserType = "VIP Kombi"
	UserTypeVOsztaly  UserType = "V-Osztály"
)

// Суффикс к позывному по типу автомобиля
var userTypeSuffix = map[UserType]string{
	UserTypeTaxi:      "S",
	UserTypeKombiTaxi: "SK",
	UserTypeVOsztaly:  "V",
	UserTypeVIP:       "",
	UserTypeVIPKombi:  "K",
}

// Suffix возвращает суффикс позывного; для неизвестного типа пустая строка
func (t UserType) Suffix() string {
	return userTypeSuffix[t]
}

func (t UserType) Valid() bool {
	_, ok := userTypeSuffix[t]
	return ok
}

// Маркеры, которые показываются перед позывным
const (
	PriorityMarker  = "🔥 "
	FoodPhoneMarker = "🍔 "
)

// Markers - флаги поверх записи в очереди
type Markers struct {
	Priority  bool `json:"priority"`
	FoodPhone bool `json:"foodPhone"`
}

// QueueMember - запись водителя в очереди. Значение сравнимо через ==,
// удаление из хранилища идёт по точному совпадению всей записи.
type QueueMember struct {
	UID          string   `json:"uid"`
	Username     string   `json:"username"`
	LicensePlate string   `json:"licensePlate"`
	UserType     UserType `json:"userType"`
	CheckInTime  string   `json:"checkInTime"`
	Markers      Markers  `json:"markers"`
}

// BaseName - позывной без маркеров: "{username}{suffix} - {plate}"
func (m QueueMember) BaseName() string {
	return fmt.Sprintf("%s%s - %s", m.Username, m.UserType.Suffix(), m.LicensePlate)
}

// DisplayName рендерит маркеры и позывной. Приоритет всегда первым.
func (m QueueMember) DisplayName() string {
	var b strings.Builder
	if m.Markers.Priority {
		b.WriteString(PriorityMarker)
	}
	if m.Markers.FoodPhone {
		b.WriteString(FoodPhoneMarker)
	}
	b.WriteString(m.BaseName())
	return b.String()
}

// IndexOfUID ищет водителя в списке; -1 если нет
func IndexOfUID(members []QueueMember, uid string) int {
	for i, m := range members {
		if m.UID == uid {
			return i
		}
	}
	return -1
}
