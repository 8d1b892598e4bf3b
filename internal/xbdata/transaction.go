package xbdata

import "github.com/mkfoss/xbase/internal/xbformat"

// WithTransaction runs closure(e), returning its value on success. On
// failure it restores the pre-call byte state of the file and returns
// TransactionRolledBack(inner). Implemented as a byte-level shadow copy;
// no transaction-flag header byte is toggled. The backup file is the sole
// recovery marker, deleted once the transaction boundary returns either way.
func (e *Engine) WithTransaction(closure func(*Engine) (any, error)) (any, error) {
	const op = "xbdata.WithTransaction"
	if err := e.checkWritable(op); err != nil {
		return nil, err
	}

	shadow, err := xbformat.BeginShadow(e.path)
	if err != nil {
		return nil, err
	}

	result, cerr := closure(e)
	if cerr != nil {
		if rerr := shadow.Restore(); rerr != nil {
			return nil, rerr
		}
		if err := e.Reload(); err != nil {
			return nil, err
		}
		return nil, xbformat.RolledBack(op, cerr)
	}

	if err := shadow.Discard(); err != nil {
		return nil, err
	}
	return result, nil
}

// Reload re-parses the header from the (possibly just-restored) on-disk
// bytes into the engine's in-memory state. The field schema is assumed
// stable across a single engine's lifetime; only the header is re-read.
// Exported so a coordinator binding this engine can resynchronize it after
// restoring a cross-file transaction's shadow backup.
func (e *Engine) Reload() error {
	hbuf := make([]byte, xbformat.HeaderSize)
	if err := xbformat.PositionedRead(e.file, 0, hbuf); err != nil {
		return err
	}
	header, err := xbformat.DecodeHeader(hbuf)
	if err != nil {
		return err
	}
	e.header = header
	return nil
}
