package engine

// Detect returns the first car that blocks a, or nil. Only cars standing on
// the same kind of cell and inside the forward cone are considered:
//
//	d < minSafe                         always blocks
//	d < 0.75*sensor and other stopped   blocks
//	d < 0.5*sensor                      blocks
//
// Two cars that each see the other ahead are crossing paths, and stacked cars
// have no bearing at all. In both cases the car with the higher ID yields.
func Detect(a *Agent, roster Roster, net *Network) *Agent {
	cell := net.CellAt(a.Position)
	if cell == nil {
		return nil
	}
	p := net.params
	heading := a.Direction.Vector()

	for _, other := range roster {
		if other == a {
			continue
		}
		d := a.Position.Dist(other.Position)
		if d >= p.SensorRange {
			continue
		}
		if d < overlapDistance {
			if other.ID < a.ID {
				return other
			}
			continue
		}
		otherCell := net.CellAt(other.Position)
		if otherCell == nil || otherCell.Kind != cell.Kind {
			continue
		}
		bearing := other.Position.Sub(a.Position).Norm()
		if heading.Dot(bearing) <= forwardCone {
			continue
		}
		if other.ID > a.ID && other.Direction.Vector().Dot(bearing.Scale(-1)) > forwardCone {
			continue
		}
		if d < p.MinSafeDistance {
			return other
		}
		if other.IsWaiting() && d < p.SensorRange*0.75 {
			return other
		}
		if d < p.SensorRange*0.5 {
			return other
		}
	}
	return nil
}

// safeToRelease reports whether nothing sits right ahead of a, within twice
// the minimum safe distance
func safeToRelease(a *Agent, roster Roster, net *Network) bool {
	p := net.params
	heading := a.Direction.Vector()
	for _, other := range roster {
		if other == a {
			continue
		}
		d := a.Position.Dist(other.Position)
		if d >= p.SensorRange {
			continue
		}
		if heading.Dot(other.Position.Sub(a.Position).Norm()) > forwardCone && d < p.MinSafeDistance*2 {
			return false
		}
	}
	return true
}

// nearStoppedTraffic reports whether a stopped car is within sensor range
func nearStoppedTraffic(a *Agent, roster Roster, net *Network) bool {
	for _, other := range roster {
		if other != a && other.IsWaiting() && a.Position.Dist(other.Position) < net.params.SensorRange {
			return true
		}
	}
	return false
}
