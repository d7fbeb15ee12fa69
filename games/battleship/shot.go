/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package battleship

// ShotResult is the outcome of a resolved shot.
type ShotResult struct {
	Hit       bool
	Sunk      string // name of the ship sunk by this shot, if any
	Remaining int    // opponent cells left after the shot
	Win       bool
}

// ResolveShot fires at the opponent slot on behalf of shooter. Preconditions
// are checked in order and the first failure returns without mutating
// anything. Only hits are recorded in the opponent's HitsReceived; a repeat of
// a missed cell is therefore resolved again as a miss.
//
// Turn handling belongs to the caller.
func ResolveShot(opponent *Slot, at Coordinate, shooter, turn int) (ShotResult, error) {
	if shooter != turn {
		return ShotResult{}, ErrNotYourTurn
	}
	if opponent == nil || opponent.Fleet == nil {
		return ShotResult{}, ErrOpponentNotReady
	}
	if _, fired := opponent.HitsReceived[at]; fired {
		return ShotResult{}, ErrDuplicateShot
	}

	var res ShotResult
	for _, ship := range opponent.Fleet {
		if !ship.strike(at) {
			continue
		}
		opponent.HitsReceived[at] = struct{}{}
		res.Hit = true
		if ship.Sunk() {
			res.Sunk = ship.Name
		}
		break
	}

	res.Remaining = opponent.Fleet.Remaining()
	res.Win = res.Remaining == 0

	return res, nil
}
