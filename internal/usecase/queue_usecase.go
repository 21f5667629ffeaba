package usecase

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"
	_ "time/tzdata"

	"go.uber.org/zap"

	"github.com/droszt-service/internal/domain"
	"github.com/droszt-service/internal/domain/repository"
	"github.com/droszt-service/internal/observability"
	"github.com/droszt-service/internal/pkg/clock"
	"github.com/droszt-service/internal/pkg/errors"
	"github.com/droszt-service/internal/zone"
)

// Причины удаления из очереди для метрик и логов
const (
	ReasonCheckout = "checkout"
	ReasonCheckin  = "checkin"
	ReasonKick     = "kick"
	ReasonGeofence = "geofence"
	ReasonZoneExit = "zone_exit"
	ReasonSignOut  = "signout"
)

// сколько раз повторять удаление, если запись изменилась между чтением и удалением
const maxRemoveAttempts = 3

// RecordObserver узнаёт об изменении активного check-in устройства
type RecordObserver interface {
	OnActiveRecordChanged(ctx context.Context, uid string, local repository.LocalStore, rec *domain.ActiveCheckinRecord)
}

type QueueUseCase struct {
	docs      repository.DocumentRepository
	profiles  repository.ProfileRepository
	registry  *zone.Registry
	presence  PresenceChecker
	clock     clock.Clock
	logger    *zap.Logger
	location  *time.Location
	observers []RecordObserver
}

func NewQueueUseCase(
	docs repository.DocumentRepository,
	profiles repository.ProfileRepository,
	registry *zone.Registry,
	presence PresenceChecker,
	clk clock.Clock,
	logger *zap.Logger,
) *QueueUseCase {
	loc, err := time.LoadLocation("Europe/Budapest")
	if err != nil {
		loc = time.Local
	}
	return &QueueUseCase{
		docs:     docs,
		profiles: profiles,
		registry: registry,
		presence: presence,
		clock:    clk,
		logger:   logger,
		location: loc,
	}
}

// Observe подписывает на изменения ActiveCheckinRecord
func (uc *QueueUseCase) Observe(o RecordObserver) {
	uc.observers = append(uc.observers, o)
}

func (uc *QueueUseCase) queueRef(name string) (domain.QueueRef, error) {
	ref, ok := uc.registry.Queue(name)
	if !ok {
		return domain.QueueRef{}, errors.ErrUnknownQueue.WithDetails(map[string]interface{}{"queue": name})
	}
	return ref, nil
}

func (uc *QueueUseCase) readList(ctx context.Context, ref domain.QueueRef) ([]domain.QueueMember, error) {
	doc, err := uc.docs.Get(ctx, ref.Document)
	if stderrors.Is(err, domain.ErrDocumentNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", ref.Document, err)
	}
	return doc.List(ref.Field), nil
}

// Snapshot - текущий порядок очереди
func (uc *QueueUseCase) Snapshot(ctx context.Context, name string) (*domain.QueueSnapshot, error) {
	ref, err := uc.queueRef(name)
	if err != nil {
		return nil, err
	}
	list, err := uc.readList(ctx, ref)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []domain.QueueMember{}
	}
	return &domain.QueueSnapshot{Queue: ref.Name, Members: list}, nil
}

// Watch - живой запрос: снимок очереди после каждого изменения документа
func (uc *QueueUseCase) Watch(ctx context.Context, name string) (<-chan domain.QueueSnapshot, error) {
	ref, err := uc.queueRef(name)
	if err != nil {
		return nil, err
	}
	docs, err := uc.docs.Watch(ctx, ref.Document)
	if err != nil {
		return nil, fmt.Errorf("failed to watch %s: %w", ref.Document, err)
	}

	out := make(chan domain.QueueSnapshot, 1)
	go func() {
		defer close(out)
		for doc := range docs {
			list := doc.List(ref.Field)
			if list == nil {
				list = []domain.QueueMember{}
			}
			select {
			case out <- domain.QueueSnapshot{Queue: ref.Name, Members: list}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// ComposeMember собирает запись очереди из профиля водителя
func (uc *QueueUseCase) ComposeMember(ctx context.Context, uid string) (domain.QueueMember, error) {
	p, err := uc.profiles.Get(ctx, uid)
	if err != nil {
		return domain.QueueMember{}, fmt.Errorf("failed to load profile: %w", err)
	}
	return p.Member(uc.clock.Now().In(uc.location).Format("15:04")), nil
}

// CheckIn ставит водителя в очередь. Сначала он снимается со всех прочих очередей,
// затем добавляется в конец целевой.
func (uc *QueueUseCase) CheckIn(ctx context.Context, sess *Session, name string, member domain.QueueMember) error {
	ref, err := uc.queueRef(name)
	if err != nil {
		return err
	}
	uid := sess.Actor.UID
	if member.UID != uid {
		return errors.ErrForbidden
	}
	member.Markers = domain.Markers{}

	if ref.Constrained() && sess.EnforceGeofence {
		inside, err := uc.presenceFor(sess).InZone(ctx, uid, ref.Geofence)
		if err != nil {
			return fmt.Errorf("failed to check presence: %w", err)
		}
		if !inside {
			return errors.ErrOutsideZone.WithDetails(map[string]interface{}{"zone": ref.Geofence})
		}
	}

	list, err := uc.readList(ctx, ref)
	if err != nil {
		return errors.ErrStoreError
	}
	if domain.IndexOfUID(list, uid) >= 0 {
		uc.logger.Debug("already checked in", zap.String("uid", uid), zap.String("queue", ref.Name))
		return uc.persistRecord(ctx, sess, ref)
	}

	switch ref.Name {
	case domain.QueueEmirates:
		err = uc.checkInEmirates(ctx, sess, ref, member)
	case domain.QueueRepter:
		err = uc.checkInRepter(ctx, sess, ref, member)
	default:
		err = uc.checkInRegular(ctx, sess, ref, member)
	}
	if err != nil {
		return err
	}

	sess.Undo.Clear()
	observability.CheckinsTotal.WithLabelValues(ref.Name).Inc()
	uc.logger.Info("checked in",
		zap.String("uid", uid),
		zap.String("queue", ref.Name),
	)
	return uc.persistRecord(ctx, sess, ref)
}

func (uc *QueueUseCase) checkInEmirates(ctx context.Context, sess *Session, ref domain.QueueRef, member domain.QueueMember) error {
	repter, err := uc.queueRef(domain.QueueRepter)
	if err != nil {
		return err
	}
	list, err := uc.readList(ctx, repter)
	if err != nil {
		return errors.ErrStoreError
	}
	if domain.IndexOfUID(list, member.UID) < 0 {
		return errors.ErrNotInAirportQueue
	}

	if err := uc.checkoutFromAll(ctx, sess, member.UID, []string{domain.QueueRepter, domain.QueueEmirates}, false, ReasonCheckin); err != nil {
		return err
	}
	if err := uc.addMember(ctx, ref, member); err != nil {
		return err
	}
	if _, _, err := uc.removeMember(ctx, repter, member.UID); err != nil {
		return err
	}
	return nil
}

func (uc *QueueUseCase) checkInRepter(ctx context.Context, sess *Session, ref domain.QueueRef, member domain.QueueMember) error {
	if err := uc.checkoutFromAll(ctx, sess, member.UID, []string{domain.QueueRepter, domain.QueueEmirates}, false, ReasonCheckin); err != nil {
		return err
	}
	if err := uc.addMember(ctx, ref, member); err != nil {
		return err
	}
	emirates, err := uc.queueRef(domain.QueueEmirates)
	if err != nil {
		return err
	}
	if _, _, err := uc.removeMember(ctx, emirates, member.UID); err != nil {
		return err
	}
	return nil
}

func (uc *QueueUseCase) checkInRegular(ctx context.Context, sess *Session, ref domain.QueueRef, member domain.QueueMember) error {
	// V-Osztály в городской зоне стоит ещё и в общей очереди V-Osztály
	dual := member.UserType == domain.UserTypeVOsztaly && ref.Family == domain.FamilyCity

	exclude := []string{ref.Name}
	if dual {
		exclude = append(exclude, domain.QueueVOsztaly)
	}
	if err := uc.checkoutFromAll(ctx, sess, member.UID, exclude, false, ReasonCheckin); err != nil {
		return err
	}
	if err := uc.addMember(ctx, ref, member); err != nil {
		return err
	}
	if !dual {
		return nil
	}

	vref, err := uc.queueRef(domain.QueueVOsztaly)
	if err != nil {
		return err
	}
	vlist, err := uc.readList(ctx, vref)
	if err != nil {
		return errors.ErrStoreError
	}
	if domain.IndexOfUID(vlist, member.UID) >= 0 {
		return nil
	}
	return uc.addMember(ctx, vref, member)
}

// CheckOut снимает водителя с очереди. Собственный checkout запоминается для «огонька».
func (uc *QueueUseCase) CheckOut(ctx context.Context, sess *Session, name, uid string) error {
	ref, err := uc.queueRef(name)
	if err != nil {
		return err
	}
	own := uid == sess.Actor.UID
	if !own && !sess.Actor.Admin {
		return errors.ErrForbidden
	}

	removed, idx, err := uc.removeMember(ctx, ref, uid)
	if err != nil {
		return err
	}
	if removed == nil {
		return nil
	}

	reason := ReasonCheckout
	if own {
		sess.Undo.Set(domain.CheckoutMemento{
			QueueName: ref.Name,
			Member:    *removed,
			Index:     idx,
			Field:     ref.Field,
		})
		if err := uc.dropRecordFor(ctx, sess, ref.Name); err != nil {
			return err
		}
	} else {
		reason = ReasonKick
	}

	observability.CheckoutsTotal.WithLabelValues(ref.Name, reason).Inc()
	uc.logger.Info("checked out",
		zap.String("uid", uid),
		zap.String("queue", ref.Name),
		zap.Int("index", idx),
		zap.String("actor", sess.Actor.UID),
	)
	return nil
}

// Reinsert возвращает водителя на прежнее место с маркером приоритета
func (uc *QueueUseCase) Reinsert(ctx context.Context, sess *Session, name string) error {
	ref, err := uc.queueRef(name)
	if err != nil {
		return err
	}
	uid := sess.Actor.UID

	m, ok := sess.Undo.Get()
	if !ok || m.Member.UID != uid || m.QueueName != ref.Name {
		return errors.ErrNothingToUndo
	}

	list, err := uc.readList(ctx, ref)
	if err != nil {
		return errors.ErrStoreError
	}
	if domain.IndexOfUID(list, uid) >= 0 {
		// уже вернулся другим путём
		sess.Undo.Clear()
		return nil
	}

	member := m.Member
	member.Markers = domain.Markers{Priority: true}

	idx := m.Index
	if idx < 0 {
		idx = 0
	}
	if idx > len(list) {
		idx = len(list)
	}
	next := make([]domain.QueueMember, 0, len(list)+1)
	next = append(next, list[:idx]...)
	next = append(next, member)
	next = append(next, list[idx:]...)

	if err := uc.docs.Replace(ctx, ref.Document, ref.Field, next); err != nil {
		uc.logger.Error("failed to reinsert", zap.String("queue", ref.Name), zap.Error(err))
		return errors.ErrStoreError
	}

	sess.Undo.Clear()
	observability.ReinsertsTotal.Inc()
	uc.logger.Info("reinserted",
		zap.String("uid", uid),
		zap.String("queue", ref.Name),
		zap.Int("index", idx),
	)
	return uc.persistRecord(ctx, sess, ref)
}

// ToggleMarker переключает маркер «еда/телефон» у собственной записи.
// Ошибки хранилища только логируются.
func (uc *QueueUseCase) ToggleMarker(ctx context.Context, sess *Session, name string) error {
	ref, err := uc.queueRef(name)
	if err != nil {
		return err
	}
	uid := sess.Actor.UID

	list, err := uc.readList(ctx, ref)
	if err != nil {
		uc.logger.Warn("toggle marker: read failed", zap.String("queue", ref.Name), zap.Error(err))
		return nil
	}
	idx := domain.IndexOfUID(list, uid)
	if idx < 0 {
		return nil
	}

	next := append([]domain.QueueMember(nil), list...)
	next[idx].Markers.FoodPhone = !next[idx].Markers.FoodPhone

	if err := uc.docs.Replace(ctx, ref.Document, ref.Field, next); err != nil {
		uc.logger.Warn("toggle marker: write failed", zap.String("queue", ref.Name), zap.Error(err))
	}
	return nil
}

// CheckoutFromAll снимает uid со всех очередей кроме exclude.
// Первый собственный checkout запоминается для отмены.
func (uc *QueueUseCase) CheckoutFromAll(ctx context.Context, sess *Session, uid string, exclude ...string) error {
	own := uid == sess.Actor.UID
	if !own && !sess.Actor.Admin {
		return errors.ErrForbidden
	}
	if err := uc.checkoutFromAll(ctx, sess, uid, exclude, own, ReasonCheckout); err != nil {
		return err
	}
	if own {
		if err := clearActiveRecord(ctx, sess.Local); err != nil {
			return err
		}
		uc.notifyRecord(ctx, sess, nil)
	}
	return nil
}

func (uc *QueueUseCase) checkoutFromAll(ctx context.Context, sess *Session, uid string, exclude []string, trackUndo bool, reason string) error {
	skip := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		skip[name] = true
	}

	remembered := false
	var errs []error
	for _, ref := range uc.registry.Queues() {
		if skip[ref.Name] {
			continue
		}
		removed, idx, err := uc.removeMember(ctx, ref, uid)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if removed == nil {
			continue
		}
		observability.CheckoutsTotal.WithLabelValues(ref.Name, reason).Inc()
		uc.logger.Info("removed from queue",
			zap.String("uid", uid),
			zap.String("queue", ref.Name),
			zap.String("reason", reason),
		)
		if trackUndo && !remembered && uid == sess.Actor.UID {
			sess.Undo.Set(domain.CheckoutMemento{
				QueueName: ref.Name,
				Member:    *removed,
				Index:     idx,
				Field:     ref.Field,
			})
			remembered = true
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("checkout from all: %w", stderrors.Join(errs...))
	}
	return nil
}

// PropagateProfileUpdate переписывает записи водителя во всех очередях после
// изменения профиля. Позиция и маркеры сохраняются, ошибки только логируются.
func (uc *QueueUseCase) PropagateProfileUpdate(ctx context.Context, sess *Session, profile domain.Profile) error {
	if profile.UID != sess.Actor.UID && !sess.Actor.Admin {
		return errors.ErrForbidden
	}

	for _, ref := range uc.registry.Queues() {
		list, err := uc.readList(ctx, ref)
		if err != nil {
			uc.logger.Warn("propagate: read failed", zap.String("queue", ref.Name), zap.Error(err))
			continue
		}
		idx := domain.IndexOfUID(list, profile.UID)
		if idx < 0 {
			continue
		}

		next := append([]domain.QueueMember(nil), list...)
		m := next[idx]
		m.Username = profile.Username
		m.LicensePlate = profile.LicensePlate
		m.UserType = profile.UserType
		if m == list[idx] {
			continue
		}
		next[idx] = m

		if err := uc.docs.Replace(ctx, ref.Document, ref.Field, next); err != nil {
			uc.logger.Warn("propagate: write failed", zap.String("queue", ref.Name), zap.Error(err))
			continue
		}
		uc.logger.Info("profile propagated", zap.String("uid", profile.UID), zap.String("queue", ref.Name))
	}
	return nil
}

// Reorder (админ) расставляет очередь по списку uid на свежем снимке.
// Не упомянутые водители сохраняют относительный порядок в конце.
func (uc *QueueUseCase) Reorder(ctx context.Context, sess *Session, name string, uids []string) error {
	if !sess.Actor.Admin {
		return errors.ErrForbidden
	}
	ref, err := uc.queueRef(name)
	if err != nil {
		return err
	}

	list, err := uc.readList(ctx, ref)
	if err != nil {
		return errors.ErrStoreError
	}

	used := make([]bool, len(list))
	next := make([]domain.QueueMember, 0, len(list))
	for _, uid := range uids {
		idx := domain.IndexOfUID(list, uid)
		if idx < 0 || used[idx] {
			continue
		}
		used[idx] = true
		next = append(next, list[idx])
	}
	for i, m := range list {
		if !used[i] {
			next = append(next, m)
		}
	}

	if err := uc.docs.Replace(ctx, ref.Document, ref.Field, next); err != nil {
		uc.logger.Error("failed to reorder", zap.String("queue", ref.Name), zap.Error(err))
		return errors.ErrStoreError
	}
	uc.logger.Info("queue reordered", zap.String("queue", ref.Name), zap.String("admin", sess.Actor.UID))
	return nil
}

// Kick (админ) удаляет водителя без записи в слот отмены
func (uc *QueueUseCase) Kick(ctx context.Context, sess *Session, name, uid string) error {
	if !sess.Actor.Admin {
		return errors.ErrForbidden
	}
	ref, err := uc.queueRef(name)
	if err != nil {
		return err
	}
	removed, _, err := uc.removeMember(ctx, ref, uid)
	if err != nil {
		return err
	}
	if removed != nil {
		observability.CheckoutsTotal.WithLabelValues(ref.Name, ReasonKick).Inc()
		uc.logger.Info("member kicked",
			zap.String("uid", uid),
			zap.String("queue", ref.Name),
			zap.String("admin", sess.Actor.UID),
		)
	}
	return nil
}

// KickEverywhere (админ) удаляет водителя из всех очередей
func (uc *QueueUseCase) KickEverywhere(ctx context.Context, sess *Session, uid string) error {
	if !sess.Actor.Admin {
		return errors.ErrForbidden
	}
	return uc.checkoutFromAll(ctx, sess, uid, nil, false, ReasonKick)
}

// ForceExit - принудительный checkout владельца сессии (выход из зоны, фоновая задача).
// Активная запись этой очереди очищается всегда, слот отмены - только если
// водитель действительно стоял в очереди. Возвращает true, если запись была удалена.
func (uc *QueueUseCase) ForceExit(ctx context.Context, sess *Session, name, reason string) (bool, error) {
	ref, err := uc.queueRef(name)
	if err != nil {
		return false, err
	}
	removed, _, err := uc.removeMember(ctx, ref, sess.Actor.UID)
	if err != nil {
		return false, err
	}
	if err := uc.dropRecordFor(ctx, sess, ref.Name); err != nil {
		return removed != nil, err
	}
	if removed == nil {
		return false, nil
	}

	sess.Undo.Clear()
	observability.CheckoutsTotal.WithLabelValues(ref.Name, reason).Inc()
	uc.logger.Info("forced checkout",
		zap.String("uid", sess.Actor.UID),
		zap.String("queue", ref.Name),
		zap.String("reason", reason),
	)
	return true, nil
}

// CheckDocuments читает каждый документ очередей; отсутствующий документ не ошибка
func (uc *QueueUseCase) CheckDocuments(ctx context.Context) error {
	for _, name := range uc.registry.Documents() {
		if _, err := uc.docs.Get(ctx, name); err != nil && !stderrors.Is(err, domain.ErrDocumentNotFound) {
			return fmt.Errorf("document %s: %w", name, err)
		}
	}
	return nil
}

// addMember - атомарный ArrayUnion с созданием документа при отсутствии
func (uc *QueueUseCase) addMember(ctx context.Context, ref domain.QueueRef, member domain.QueueMember) error {
	err := uc.docs.ArrayUnion(ctx, ref.Document, ref.Field, member)
	if stderrors.Is(err, domain.ErrDocumentNotFound) {
		err = uc.docs.Create(ctx, ref.Document, ref.Field, []domain.QueueMember{member})
		if stderrors.Is(err, domain.ErrDocumentExists) {
			// документ создан параллельно
			err = uc.docs.ArrayUnion(ctx, ref.Document, ref.Field, member)
		}
	}
	if err != nil {
		uc.logger.Error("failed to add member",
			zap.String("queue", ref.Name),
			zap.String("uid", member.UID),
			zap.Error(err),
		)
		return errors.ErrStoreError
	}
	return nil
}

// removeMember находит запись по uid и удаляет её по точному значению.
// Если запись изменилась между чтением и удалением, попытка повторяется.
func (uc *QueueUseCase) removeMember(ctx context.Context, ref domain.QueueRef, uid string) (*domain.QueueMember, int, error) {
	for attempt := 0; attempt < maxRemoveAttempts; attempt++ {
		list, err := uc.readList(ctx, ref)
		if err != nil {
			uc.logger.Error("failed to read queue", zap.String("queue", ref.Name), zap.Error(err))
			return nil, -1, errors.ErrStoreError
		}
		idx := domain.IndexOfUID(list, uid)
		if idx < 0 {
			return nil, -1, nil
		}
		m := list[idx]

		removed, err := uc.docs.ArrayRemove(ctx, ref.Document, ref.Field, m)
		if err != nil {
			uc.logger.Error("failed to remove member",
				zap.String("queue", ref.Name),
				zap.String("uid", uid),
				zap.Error(err),
			)
			return nil, -1, errors.ErrStoreError
		}
		if removed {
			return &m, idx, nil
		}
		observability.StoreRetries.Inc()
	}
	uc.logger.Warn("member kept changing during removal", zap.String("queue", ref.Name), zap.String("uid", uid))
	return nil, -1, errors.ErrStoreError
}

func (uc *QueueUseCase) presenceFor(sess *Session) PresenceChecker {
	if sess.Presence != nil {
		return sess.Presence
	}
	return uc.presence
}

func (uc *QueueUseCase) persistRecord(ctx context.Context, sess *Session, ref domain.QueueRef) error {
	rec := domain.ActiveCheckinRecord{
		QueueName:       ref.Name,
		GeofenceZone:    ref.Geofence,
		UID:             sess.Actor.UID,
		EnforceGeofence: sess.EnforceGeofence && ref.Constrained(),
	}
	if err := saveActiveRecord(ctx, sess.Local, rec); err != nil {
		return err
	}
	uc.notifyRecord(ctx, sess, &rec)
	return nil
}

// dropRecordFor очищает активную запись, если она указывает на эту очередь
func (uc *QueueUseCase) dropRecordFor(ctx context.Context, sess *Session, queue string) error {
	rec, err := loadActiveRecord(ctx, sess.Local)
	if err != nil {
		uc.logger.Warn("active check-in unreadable, clearing", zap.Error(err))
	} else if rec == nil || rec.QueueName != queue {
		return nil
	}
	if err := clearActiveRecord(ctx, sess.Local); err != nil {
		return err
	}
	uc.notifyRecord(ctx, sess, nil)
	return nil
}

func (uc *QueueUseCase) notifyRecord(ctx context.Context, sess *Session, rec *domain.ActiveCheckinRecord) {
	for _, o := range uc.observers {
		o.OnActiveRecordChanged(ctx, sess.Actor.UID, sess.Local, rec)
	}
}
