// Copyright (c) 2026 The Hoard Authors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package peer

import "fmt"

// ErrPeerAlreadyInRegistry indicates a duplicate peer name was configured.
type ErrPeerAlreadyInRegistry string

func (e ErrPeerAlreadyInRegistry) Error() string {
	return fmt.Sprintf("peer %q is already registered", string(e))
}

// ErrPeerNotInRegistry indicates a lookup for a peer name that was never
// configured.
type ErrPeerNotInRegistry string

func (e ErrPeerNotInRegistry) Error() string {
	return fmt.Sprintf("peer %q is not registered", string(e))
}

// ErrInvalidPeer indicates a peer definition that cannot be used, with the
// reason spelled out.
type ErrInvalidPeer struct {
	Name   string
	Reason string
}

func (e ErrInvalidPeer) Error() string {
	return fmt.Sprintf("peer %q is invalid: %s", e.Name, e.Reason)
}
