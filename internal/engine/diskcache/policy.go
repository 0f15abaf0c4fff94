package diskcache

import "go.trai.ch/mediacache/internal/core/domain"

// shouldReplace decides whether incoming data replaces a stored variant.
//
// Rules, first match wins:
//  1. forced replaces.
//  2. Real data replaces a placeholder.
//  3. extra replaces.
//  4. A placeholder never replaces real data.
//  5. Otherwise the larger or equal area replaces, unless it is the same
//     image at the same size.
func shouldReplace(forced, extra bool, stored, incoming domain.EntryContext) bool {
	if forced {
		return true
	}
	if stored.TreatAsPlaceholder && !incoming.TreatAsPlaceholder {
		return true
	}
	if extra {
		return true
	}
	if stored.TreatAsPlaceholder != incoming.TreatAsPlaceholder {
		return false
	}

	oldArea := stored.Dimensions.Area()
	newArea := incoming.Dimensions.Area()
	if newArea < oldArea {
		return false
	}
	return newArea != oldArea || stored.URL != incoming.URL
}

// finalizeBlocked reports whether stored data of higher or equal fidelity
// keeps an incoming temp file of the given size out of the cache.
// A partial of equal area is only blocked when it holds at least as many bytes,
// so a resumed download can replace the partial it was seeded from.
func finalizeBlocked(stored domain.Entry, incoming domain.EntryContext, size int64) bool {
	area := incoming.Dimensions.Area()

	switch incoming.Kind {
	case domain.KindComplete:
		if c := stored.Complete; c != nil {
			if c.Context.Dimensions.Area() >= area {
				return true
			}
			if incoming.TreatAsPlaceholder && !c.Context.TreatAsPlaceholder {
				return true
			}
		}
		if p := stored.Partial; p != nil && p.Context.Dimensions.Area() > area {
			return true
		}
	case domain.KindPartial:
		if c := stored.Complete; c != nil && c.Context.Dimensions.Area() >= area {
			return true
		}
		if p := stored.Partial; p != nil {
			oldArea := p.Context.Dimensions.Area()
			if oldArea > area || (oldArea == area && p.Size >= size) {
				return true
			}
		}
	}
	return false
}
