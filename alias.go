package ldb

import "github.com/FrankFSM/ldb/base"

// The types below are the public surface of the internal key algebra and
// error taxonomy, implemented in package base (imported, in turn, by
// sstable and memtable) so that this package can depend on those without a
// cycle. Re-exporting them here keeps callers of package ldb from having to
// import base directly.

type (
	SeqNum              = base.SeqNum
	InternalKeyKind     = base.InternalKeyKind
	InternalKeyTrailer  = base.InternalKeyTrailer
	InternalKey         = base.InternalKey
	Comparer            = base.Comparer
	Compare             = base.Compare
	Kind                = base.Kind
)

const (
	SeqNumMax             = base.SeqNumMax
	InternalKeyKindDelete = base.InternalKeyKindDelete
	InternalKeyKindSet    = base.InternalKeyKindSet

	KindNotFound        = base.KindNotFound
	KindCorruption      = base.KindCorruption
	KindIOError         = base.KindIOError
	KindNotSupported    = base.KindNotSupported
	KindInvalidArgument = base.KindInvalidArgument
)

var (
	DefaultComparer = base.DefaultComparer
	DefaultCompare  = base.DefaultCompare

	ErrNotFound        = base.ErrNotFound
	ErrCorruption      = base.ErrCorruption
	ErrIOError         = base.ErrIOError
	ErrNotSupported    = base.ErrNotSupported
	ErrInvalidArgument = base.ErrInvalidArgument

	MakeInternalKey = base.MakeInternalKey
	MakeSearchKey   = base.MakeSearchKey
	InternalCompare = base.InternalCompare

	Is         = base.Is
	IsNotFound = base.IsNotFound
)

func errorf(k Kind, format string, args ...interface{}) error {
	return base.Errorf(k, format, args...)
}

func wrapIOError(err error, format string, args ...interface{}) error {
	return base.WrapIOError(err, format, args...)
}
