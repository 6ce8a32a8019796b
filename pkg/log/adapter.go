package log

import "github.com/sirupsen/logrus"

// BadgerAdapter satisfies badger.Logger with a logrus entry, so the analysis
// result store logs through the same pipeline as everything else. Badger is
// chatty at info level, so callers usually hand this an entry with the level
// clamped via NewBadgerAdapter's entry argument.
type BadgerAdapter struct {
	*logrus.Entry
}

// NewBadgerAdapter wraps a contextual logrus entry for badger.
func NewBadgerAdapter(entry *logrus.Entry) *BadgerAdapter {
	return &BadgerAdapter{entry}
}

func (l *BadgerAdapter) Errorf(f string, v ...interface{})   { l.Entry.Errorf(f, v...) }
func (l *BadgerAdapter) Warningf(f string, v ...interface{}) { l.Entry.Warningf(f, v...) }
func (l *BadgerAdapter) Infof(f string, v ...interface{})    { l.Entry.Debugf(f, v...) }
func (l *BadgerAdapter) Debugf(f string, v ...interface{})   { l.Entry.Debugf(f, v...) }
