//go:generate mockgen -package=profile -destination=mock.go -source=interfaces.go

package profile

import (
	"context"

	"github.com/google/uuid"
)

// IIdentityStore 定義身份資料的存取介面
type IIdentityStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (Identity, error)
	FindByUsername(ctx context.Context, username string) (Identity, error)
	Update(ctx context.Context, identity Identity) error
}

// IDepartmentDirectory 定義系所的唯讀查詢介面
type IDepartmentDirectory interface {
	FindByID(ctx context.Context, id uint) (Department, error)
}

// IProfileRepository 定義角色資料的存取介面，所有角色種類共用
type IProfileRepository interface {
	FindByIdentity(ctx context.Context, identityID uuid.UUID, kind Kind) (*Profile, error)
	Insert(ctx context.Context, profile *Profile) (uint, error)
	Update(ctx context.Context, profile *Profile) error
}

// IStores 是綁定在同一個交易上的儲存介面
type IStores interface {
	Identities() IIdentityStore
	Profiles() IProfileRepository
}

// ITransactionCoordinator 在單一交易中執行 fn，fn 回傳錯誤時回滾
// fn 收到的 ctx 帶有交易的期限，交易中的每個操作都應該使用它
type ITransactionCoordinator interface {
	Execute(ctx context.Context, fn func(ctx context.Context, stores IStores) error) error
}

// IAttachmentUploader 以盡力而為的方式儲存大頭貼，不參與交易
type IAttachmentUploader interface {
	Upload(ctx context.Context, identityID uuid.UUID, attachment Attachment) error
}

// IEventPublisher 在提交後發布同步事件
type IEventPublisher interface {
	Publish(ctx context.Context, event Synchronized) error
}

// ILocker 以身份為單位序列化同步，回傳的 context 在失去鎖時會被取消
type ILocker interface {
	Lock(ctx context.Context, identityID uuid.UUID) (context.Context, func(), error)
}
