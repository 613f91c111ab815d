// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package hazard implements hazard-pointer based deferred reclamation.
//
// The garbage collector already prevents use-after-free, but objects that
// are recycled through a pool can still be observed by a goroutine that
// loaded a stale pointer. A Domain returns an object to its owner only once
// no goroutine has it published in a hazard slot.
//
// Protocol:
//
//	rec := d.Acquire()
//	p := d.Protect(rec, 0, &shared)   // p stays valid until cleared
//	...
//	if shared.CompareAndSwap(p, next) {
//	    d.Clear(rec)
//	    d.Retire(rec, p)              // freed by a later scan
//	}
//	d.Release(rec)
//
// A goroutine must not hold a protected pointer across a blocking call.
package hazard
