package profile

import "fmt"

// Kind 代表角色資料的種類，決定使用哪一張資料表與哪些欄位
type Kind string

const (
	KindDoctor  Kind = "doctor"
	KindTeacher Kind = "teacher"
	KindStudent Kind = "student"
)

// Kinds 列出所有支援的角色資料種類
var Kinds = []Kind{KindDoctor, KindTeacher, KindStudent}

// Valid 檢查是否為支援的角色資料種類
func (k Kind) Valid() bool {
	switch k {
	case KindDoctor, KindTeacher, KindStudent:
		return true
	}
	return false
}

// HasLevel 回傳該種類是否帶有學年(level)欄位
func (k Kind) HasLevel() bool {
	return k == KindStudent
}

// ParseKind 將字串轉換為 Kind
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}
