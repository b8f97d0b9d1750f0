// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import "sync"

// FileToken cancels a single file transfer without touching the rest of the
// run. The zero value is not usable; create tokens with NewFileToken.
type FileToken struct {
	once sync.Once
	done chan struct{}
}

// NewFileToken returns a token that has not fired.
func NewFileToken() *FileToken {
	return &FileToken{done: make(chan struct{})}
}

// Cancel fires the token. Calling it more than once is safe.
func (t *FileToken) Cancel() {
	t.once.Do(func() { close(t.done) })
}

// Done is closed once the token fires. A nil token never fires.
func (t *FileToken) Done() <-chan struct{} {
	if t == nil {
		return nil
	}
	return t.done
}

// Canceled reports whether the token has fired.
func (t *FileToken) Canceled() bool {
	if t == nil {
		return false
	}
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// FileNeed is a provider's answer to whether an instance's file should be
// downloaded.
type FileNeed struct {
	Required bool
	Token    *FileToken
}
