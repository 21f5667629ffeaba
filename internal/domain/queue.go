package domain

// QueueField - поле документа с массивом участников
type QueueField string

const (
	FieldMembers         QueueField = "members"
	FieldEmiratesMembers QueueField = "emiratesMembers"
)

// QueueDocument - документ locations/{name}
type QueueDocument struct {
	Name            string        `json:"name"`
	Members         []QueueMember `json:"members"`
	EmiratesMembers []QueueMember `json:"emiratesMembers,omitempty"`
	Notes           []string      `json:"notes,omitempty"`
}

// List возвращает массив указанного поля
func (d *QueueDocument) List(field QueueField) []QueueMember {
	if d == nil {
		return nil
	}
	if field == FieldEmiratesMembers {
		return d.EmiratesMembers
	}
	return d.Members
}

// SetList заменяет массив указанного поля
func (d *QueueDocument) SetList(field QueueField, members []QueueMember) {
	if field == FieldEmiratesMembers {
		d.EmiratesMembers = members
		return
	}
	d.Members = members
}

// QueueSnapshot - состояние одной очереди для подписчиков и API
type QueueSnapshot struct {
	Queue   string        `json:"queue"`
	Members []QueueMember `json:"members"`
}
