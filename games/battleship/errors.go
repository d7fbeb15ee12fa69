/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package battleship

import "errors"

// Rejections surfaced to the offending connection as an error notification.
// None of them leave a partial mutation behind.
var (
	ErrRoomFull          = errors.New("room is full")
	ErrGameInProgress    = errors.New("game already in progress")
	ErrNotYourTurn       = errors.New("not your turn")
	ErrOpponentNotReady  = errors.New("opponent not ready")
	ErrDuplicateShot     = errors.New("coordinate already fired upon")
	ErrFleetLocked       = errors.New("fleet can no longer be changed")
	ErrGameNotInProgress = errors.New("game is not in progress")
)

// ErrMalformedMessage is returned by ParseEvent. Callers drop the frame
// without telling the client.
var ErrMalformedMessage = errors.New("malformed message")
