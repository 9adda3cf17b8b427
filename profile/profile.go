package profile

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// State 代表某個身份在某個角色種類下的資料狀態
type State int

const (
	// StateAbsent 表示尚未建立角色資料，寫入時需要新增
	StateAbsent State = iota
	// StateBound 表示角色資料已經綁定身份，寫入時只需要更新
	StateBound
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateBound:
		return "bound"
	}
	return "unknown"
}

// Profile 是與種類無關的角色資料
// Doctor 與 Teacher 只有系所，Student 額外帶有學年
type Profile struct {
	ID           uint
	Kind         Kind
	IdentityID   uuid.UUID
	DepartmentID uint
	Level        int
	Version      uint

	state State
}

// New 建立一筆尚未綁定身份、尚未寫入的角色資料
func New(kind Kind) *Profile {
	return &Profile{Kind: kind, state: StateAbsent}
}

// Restore 由儲存層還原一筆已經存在的角色資料
func Restore(p Profile) *Profile {
	p.state = StateBound
	return &p
}

// State 回傳目前的資料狀態
func (p *Profile) State() State {
	return p.state
}

// Bind 將角色資料綁定到身份，只有第一次呼叫會生效
func (p *Profile) Bind(identityID uuid.UUID) {
	if p.IdentityID == uuid.Nil {
		p.IdentityID = identityID
	}
}

// MarkInserted 在新增成功後記錄代理鍵並轉為已綁定
func (p *Profile) MarkInserted(id uint) {
	p.ID = id
	p.state = StateBound
}

// Identity 是身份資料中與角色資料同步的部分
type Identity struct {
	ID          uuid.UUID
	Username    string
	Email       string
	FirstName   string
	LastName    string
	PhoneNumber string
	Roles       []string
}

// Department 是系所資料，對同步流程而言唯讀
type Department struct {
	ID   uint
	Name string
}

// Attachment 是隨編輯資料一同上傳的大頭貼
type Attachment struct {
	Filename string
	Data     []byte
}

// 編輯欄位的長度上限，與資料表欄位大小一致
const (
	MaxUsernameLength    = 256
	MaxNameLength        = 50
	MaxPhoneNumberLength = 32
)

// Payload 是一次同步的編輯資料
type Payload struct {
	Username     string
	FirstName    string
	LastName     string
	PhoneNumber  string
	DepartmentID uint
	// Level 只有 Student 會使用
	Level      int
	Attachment *Attachment
}

// Validate 檢查欄位是否能寫入資料表，長度以字元數計算
func (p Payload) Validate() error {
	if strings.TrimSpace(p.Username) == "" {
		return &ValidationError{Field: "UserName", Err: fmt.Errorf("%w: username is required", ErrInvalidField)}
	}
	fields := []struct {
		key   string
		value string
		limit int
	}{
		{key: "UserName", value: p.Username, limit: MaxUsernameLength},
		{key: "FirstName", value: p.FirstName, limit: MaxNameLength},
		{key: "LastName", value: p.LastName, limit: MaxNameLength},
		{key: "PhoneNumber", value: p.PhoneNumber, limit: MaxPhoneNumberLength},
	}
	for _, f := range fields {
		if utf8.RuneCountInString(f.value) > f.limit {
			return &ValidationError{Field: f.key, Err: fmt.Errorf("%w: at most %d characters", ErrInvalidField, f.limit)}
		}
	}
	return nil
}

// Result 是同步成功後的結果
type Result struct {
	IdentityID uuid.UUID
	ProfileID  uint
	// Created 表示這次同步讓角色資料從 Absent 轉為 Bound
	Created  bool
	Warnings []error
}

// Synchronized 是提交成功後發布的事件
type Synchronized struct {
	IdentityID   uuid.UUID
	Kind         Kind
	ProfileID    uint
	DepartmentID uint
	Created      bool
	OccurredAt   time.Time
}
