package errors

import "errors"

// ErrNotAffected 条件更新/删除未命中任何行（记录不存在或已被并发修改）
var ErrNotAffected = errors.New("no rows affected")
