package ledger

import "fmt"

// Owner returns the account holding asset, if it is staked
func (l *Ledger) Owner(asset AssetID) (AccountID, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	owner, ok := l.index[asset]
	return owner, ok
}

// IsStaked reports whether asset is in the global stake index
func (l *Ledger) IsStaked(asset AssetID) bool {
	_, ok := l.Owner(asset)
	return ok
}

// unindexed fails with ErrAlreadyStaked on the first asset already in the index
// or repeated within assets. Callers hold mu.
func (l *Ledger) unindexed(assets []AssetID) error {
	seen := make(map[AssetID]struct{}, len(assets))
	for _, a := range assets {
		if owner, ok := l.index[a]; ok {
			return alreadyStaked(a, owner)
		}
		if _, dup := seen[a]; dup {
			return alreadyStaked(a, "")
		}
		seen[a] = struct{}{}
	}
	return nil
}

func (l *Ledger) indexRecord(r *StakeRecord) {
	for _, a := range r.Assets {
		l.index[a.ID] = r.Owner
	}
}

func (l *Ledger) unindexRecord(r *StakeRecord) {
	for _, a := range r.Assets {
		delete(l.index, a.ID)
	}
}

func alreadyStaked(asset AssetID, owner AccountID) error {
	if owner == "" {
		return fmt.Errorf("%w: asset %s repeated", ErrAlreadyStaked, asset)
	}
	return fmt.Errorf("%w: asset %s held by %s", ErrAlreadyStaked, asset, owner)
}
