/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package battleship

// Coordinate is a single board cell.
type Coordinate struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// ShipSpec is a ship as submitted by a client.
type ShipSpec struct {
	Name   string       `json:"name"`
	Coords []Coordinate `json:"coords"`
}

// Ship tracks the cells of one ship that have not been hit yet.
type Ship struct {
	Name      string
	remaining map[Coordinate]struct{}
}

func NewShip(name string, coords []Coordinate) *Ship {
	s := &Ship{
		Name:      name,
		remaining: make(map[Coordinate]struct{}, len(coords)),
	}
	for _, c := range coords {
		s.remaining[c] = struct{}{}
	}
	return s
}

func (s *Ship) Contains(c Coordinate) bool {
	_, ok := s.remaining[c]
	return ok
}

func (s *Ship) Remaining() int {
	return len(s.remaining)
}

func (s *Ship) Sunk() bool {
	return len(s.remaining) == 0
}

// strike removes c from the ship, reporting whether it was there.
func (s *Ship) strike(c Coordinate) bool {
	if _, ok := s.remaining[c]; !ok {
		return false
	}
	delete(s.remaining, c)
	return true
}

// Fleet is a player's ships in submission order. Its shape is fixed once
// built; only strikes change it.
type Fleet []*Ship

// NewFleet builds a fleet from client specs. It returns nil when the specs
// hold no coordinates at all, which marks the player as not ready.
func NewFleet(specs []ShipSpec) Fleet {
	fleet := make(Fleet, 0, len(specs))
	for _, spec := range specs {
		fleet = append(fleet, NewShip(spec.Name, spec.Coords))
	}
	if fleet.Remaining() == 0 {
		return nil
	}
	return fleet
}

// Remaining is the number of unhit cells across the fleet.
func (f Fleet) Remaining() int {
	total := 0
	for _, s := range f {
		total += s.Remaining()
	}
	return total
}
