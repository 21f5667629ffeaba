package repository

import "context"

// LocalStore - durable key-value хранилище устройства.
// Переживает перезапуск процесса; фоновая задача читает из него состояние заново.
type LocalStore interface {
	// Get возвращает значение; domain.ErrKeyNotFound если ключа нет
	Get(ctx context.Context, key string) (string, error)

	Set(ctx context.Context, key, value string) error

	// Delete удаляет ключи; отсутствие ключа не ошибка
	Delete(ctx context.Context, keys ...string) error
}

// LocalStoreFactory выдаёт хранилище конкретной установки водителя.
// У двух устройств одного водителя хранилища разные.
type LocalStoreFactory interface {
	ForDevice(uid, device string) LocalStore
}
