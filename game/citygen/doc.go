// Package citygen generates random city layouts for the traffic engine.
//
// Roads are one-way and span a full row or column unless they start or end
// at a crossing. Parallel roads are never adjacent. Every crossing becomes a
// junction, and the largest empty areas are filled with buildings.
//
// Usage:
//
//	rng := rand.New(rand.NewSource(42))
//	layout := citygen.Generate(50, 50, rng, citygen.Knobs{})
package citygen
