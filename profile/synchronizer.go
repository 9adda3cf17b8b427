package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

var ErrUploaderUnavailable = errors.New("attachment uploader not configured")

type synchronizerOptions struct {
	logger    *slog.Logger
	uploader  IAttachmentUploader
	publisher IEventPublisher
	locker    ILocker
	now       func() time.Time
}

type SynchronizerOption func(*synchronizerOptions)

// WithLogger 設置日誌記錄器
func WithLogger(logger *slog.Logger) SynchronizerOption {
	return func(o *synchronizerOptions) {
		o.logger = logger
	}
}

// WithAttachmentUploader 設置提交後使用的大頭貼上傳器
func WithAttachmentUploader(uploader IAttachmentUploader) SynchronizerOption {
	return func(o *synchronizerOptions) {
		o.uploader = uploader
	}
}

// WithEventPublisher 設置提交後使用的事件發布器
func WithEventPublisher(publisher IEventPublisher) SynchronizerOption {
	return func(o *synchronizerOptions) {
		o.publisher = publisher
	}
}

// WithLocker 設置以身份為單位的分散式鎖
func WithLocker(locker ILocker) SynchronizerOption {
	return func(o *synchronizerOptions) {
		o.locker = locker
	}
}

// WithClock 設置事件時間來源
func WithClock(now func() time.Time) SynchronizerOption {
	return func(o *synchronizerOptions) {
		o.now = now
	}
}

// Synchronizer 在單一交易中同步身份資料與角色資料
//
// 同步分為兩個階段：
//  1. commit：身份更新與角色資料新增/更新在同一個交易中完成，失敗時全部回滾
//  2. afterCommit：交易提交後才執行的大頭貼上傳與事件發布，失敗只會產生警告
//
// 第二階段永遠不會影響第一階段已提交的資料。
type Synchronizer struct {
	identities  IIdentityStore
	departments IDepartmentDirectory
	profiles    IProfileRepository
	tx          ITransactionCoordinator
	logger      *slog.Logger
	options     synchronizerOptions
}

func NewSynchronizer(
	identities IIdentityStore,
	departments IDepartmentDirectory,
	profiles IProfileRepository,
	tx ITransactionCoordinator,
	opts ...SynchronizerOption,
) (*Synchronizer, error) {
	if identities == nil {
		return nil, errors.New("identity store cannot be nil")
	}
	if departments == nil {
		return nil, errors.New("department directory cannot be nil")
	}
	if profiles == nil {
		return nil, errors.New("profile repository cannot be nil")
	}
	if tx == nil {
		return nil, errors.New("transaction coordinator cannot be nil")
	}

	// 默認選項
	options := synchronizerOptions{
		logger: slog.Default(),
		now:    time.Now,
	}

	// 應用自定義選項
	for _, opt := range opts {
		opt(&options)
	}

	return &Synchronizer{
		identities:  identities,
		departments: departments,
		profiles:    profiles,
		tx:          tx,
		logger:      options.logger.With(slog.String("caller", "Synchronizer")),
		options:     options,
	}, nil
}

// SynchronizeDoctorProfile 同步 Doctor 角色資料
func (s *Synchronizer) SynchronizeDoctorProfile(ctx context.Context, identityID uuid.UUID, payload Payload) (Result, error) {
	return s.Synchronize(ctx, identityID, KindDoctor, payload)
}

// SynchronizeTeacherProfile 同步 Teacher(助教) 角色資料
func (s *Synchronizer) SynchronizeTeacherProfile(ctx context.Context, identityID uuid.UUID, payload Payload) (Result, error) {
	return s.Synchronize(ctx, identityID, KindTeacher, payload)
}

// SynchronizeStudentProfile 同步 Student 角色資料，payload.Level 為學年
func (s *Synchronizer) SynchronizeStudentProfile(ctx context.Context, identityID uuid.UUID, payload Payload) (Result, error) {
	return s.Synchronize(ctx, identityID, KindStudent, payload)
}

// Synchronize 驗證編輯資料，並在同一個交易中更新身份與角色資料
func (s *Synchronizer) Synchronize(ctx context.Context, identityID uuid.UUID, kind Kind, payload Payload) (Result, error) {
	const op = "Synchronize"
	if !kind.Valid() {
		return Result{}, &ValidationError{Field: "Kind", Err: fmt.Errorf("%w: %q", ErrUnknownKind, kind)}
	}
	if err := payload.Validate(); err != nil {
		return Result{}, err
	}
	logger := s.logger.With(slog.String("identityID", identityID.String()), slog.String("kind", string(kind)))

	// 同一個身份的同步需要序列化
	if s.options.locker != nil {
		lockCtx, unlock, err := s.options.locker.Lock(ctx, identityID)
		if err != nil {
			return Result{}, &TransactionError{Op: op, Err: fmt.Errorf("fail to acquire identity lock: %w", err)}
		}
		defer unlock()
		ctx = lockCtx
	}

	// 驗證並在記憶體中準備要寫入的資料
	identity, p, err := s.prepare(ctx, identityID, kind, payload)
	if err != nil {
		logger.Debug("Reject synchronization", slog.Any("error", err))
		return Result{}, err
	}

	// 第一階段：交易
	created := p.State() == StateAbsent
	if err := s.commit(ctx, identity, p); err != nil {
		logger.Error("Fail to commit profile", slog.Any("error", err))
		return Result{}, err
	}
	logger.Info("Profile synchronized", slog.Uint64("profileID", uint64(p.ID)), slog.Bool("created", created))

	// 第二階段：提交後的副作用
	result := Result{
		IdentityID: identity.ID,
		ProfileID:  p.ID,
		Created:    created,
	}
	result.Warnings = s.afterCommit(ctx, logger, p, payload, created)
	return result, nil
}

func (s *Synchronizer) prepare(ctx context.Context, identityID uuid.UUID, kind Kind, payload Payload) (Identity, *Profile, error) {
	const op = "prepare"
	// 檢查身份是否存在
	identity, err := s.identities.FindByID(ctx, identityID)
	if errors.Is(err, ErrNotFound) {
		return Identity{}, nil, &ValidationError{Field: "Id", Err: ErrIdentityNotFound}
	}
	if err != nil {
		return Identity{}, nil, &TransactionError{Op: op, Err: fmt.Errorf("fail to find identity, err=%w", err)}
	}

	// 檢查使用者名稱是否被其他身份使用
	holder, err := s.identities.FindByUsername(ctx, payload.Username)
	if err == nil && holder.ID != identity.ID {
		return Identity{}, nil, &ValidationError{Field: "UserName", Err: ErrUsernameConflict}
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Identity{}, nil, &TransactionError{Op: op, Err: fmt.Errorf("fail to find username, err=%w", err)}
	}

	// 檢查系所是否存在
	department, err := s.departments.FindByID(ctx, payload.DepartmentID)
	if errors.Is(err, ErrNotFound) {
		return Identity{}, nil, &ValidationError{Field: "DepartmentId", Err: ErrDepartmentNotFound}
	}
	if err != nil {
		return Identity{}, nil, &TransactionError{Op: op, Err: fmt.Errorf("fail to find department, err=%w", err)}
	}

	// 取得角色資料，不存在時建立新的
	p, err := s.profiles.FindByIdentity(ctx, identity.ID, kind)
	if errors.Is(err, ErrNotFound) {
		p = New(kind)
	} else if err != nil {
		return Identity{}, nil, &TransactionError{Op: op, Err: fmt.Errorf("fail to find profile, err=%w", err)}
	}
	p.Bind(identity.ID)
	p.DepartmentID = department.ID
	if kind.HasLevel() {
		p.Level = payload.Level
	}

	identity.Username = payload.Username
	identity.FirstName = payload.FirstName
	identity.LastName = payload.LastName
	identity.PhoneNumber = payload.PhoneNumber
	return identity, p, nil
}

func (s *Synchronizer) commit(ctx context.Context, identity Identity, p *Profile) error {
	const op = "commit"
	var insertedID uint
	err := s.tx.Execute(ctx, func(ctx context.Context, stores IStores) error {
		if err := stores.Identities().Update(ctx, identity); err != nil {
			return fmt.Errorf("fail to update identity, err=%w", err)
		}
		switch p.State() {
		case StateAbsent:
			id, err := stores.Profiles().Insert(ctx, p)
			if err != nil {
				return fmt.Errorf("fail to insert profile, err=%w", err)
			}
			insertedID = id
		case StateBound:
			if err := stores.Profiles().Update(ctx, p); err != nil {
				return fmt.Errorf("fail to update profile, err=%w", err)
			}
		}
		return nil
	})
	if err != nil {
		return &TransactionError{Op: op, Err: err}
	}
	if p.State() == StateAbsent {
		p.MarkInserted(insertedID)
	}
	return nil
}

// afterCommit 只能在交易提交成功後呼叫
// 這裡的失敗只會被記錄並回傳為警告
func (s *Synchronizer) afterCommit(ctx context.Context, logger *slog.Logger, p *Profile, payload Payload, created bool) []error {
	var warnings []error

	if payload.Attachment != nil {
		err := ErrUploaderUnavailable
		if s.options.uploader != nil {
			err = s.options.uploader.Upload(ctx, p.IdentityID, *payload.Attachment)
		}
		if err != nil {
			logger.Warn("Fail to upload attachment", slog.Any("error", err))
			warnings = append(warnings, &Warning{Kind: ErrUploadWarning, Err: err})
		}
	}

	if s.options.publisher != nil {
		event := Synchronized{
			IdentityID:   p.IdentityID,
			Kind:         p.Kind,
			ProfileID:    p.ID,
			DepartmentID: p.DepartmentID,
			Created:      created,
			OccurredAt:   s.options.now(),
		}
		if err := s.options.publisher.Publish(ctx, event); err != nil {
			logger.Warn("Fail to publish profile event", slog.Any("error", err))
			warnings = append(warnings, &Warning{Kind: ErrPublishWarning, Err: err})
		}
	}

	return warnings
}
