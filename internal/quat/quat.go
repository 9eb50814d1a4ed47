// Package quat implements the quaternion userdata kind (§4.11): four
// inline floats and the rotation/interpolation operators LSL scripts use
// to orient objects.
package quat

import (
	"math"

	"github.com/christophe-duc/lslengine/internal/value"
)

// Quaternion stores its four components inline, matching the legacy
// engine's representation so persistence can write the raw payload
// without an intermediate table.
type Quaternion struct {
	X, Y, Z, S float32
}

// Identity is the no-rotation quaternion.
var Identity = Quaternion{S: 1}

// Mul computes the Hamilton product a*b (rotation composition: applying
// the result rotates first by b, then by a).
func (a Quaternion) Mul(b Quaternion) Quaternion {
	return Quaternion{
		X: a.S*b.X + a.X*b.S + a.Y*b.Z - a.Z*b.Y,
		Y: a.S*b.Y - a.X*b.Z + a.Y*b.S + a.Z*b.X,
		Z: a.S*b.Z + a.X*b.Y - a.Y*b.X + a.Z*b.S,
		S: a.S*b.S - a.X*b.X - a.Y*b.Y - a.Z*b.Z,
	}
}

// Div multiplies a by the conjugate of b, the legacy definition of
// quaternion division.
func (a Quaternion) Div(b Quaternion) Quaternion {
	return a.Mul(b.Conjugate())
}

// Add is componentwise addition.
func (a Quaternion) Add(b Quaternion) Quaternion {
	return Quaternion{a.X + b.X, a.Y + b.Y, a.Z + b.Z, a.S + b.S}
}

// Sub is componentwise subtraction.
func (a Quaternion) Sub(b Quaternion) Quaternion {
	return Quaternion{a.X - b.X, a.Y - b.Y, a.Z - b.Z, a.S - b.S}
}

// Neg negates every component.
func (a Quaternion) Neg() Quaternion {
	return Quaternion{-a.X, -a.Y, -a.Z, -a.S}
}

// Equal is componentwise IEEE equality: two all-NaN quaternions are not
// equal to each other, matching float comparison semantics rather than a
// structural one.
func (a Quaternion) Equal(b Quaternion) bool {
	return a.X == b.X && a.Y == b.Y && a.Z == b.Z && a.S == b.S
}

// Conjugate negates the vector part and keeps the scalar part.
func (a Quaternion) Conjugate() Quaternion {
	return Quaternion{-a.X, -a.Y, -a.Z, a.S}
}

// Magnitude is the Euclidean norm of the 4-vector.
func (a Quaternion) Magnitude() float64 {
	return math.Sqrt(float64(a.X)*float64(a.X) + float64(a.Y)*float64(a.Y) + float64(a.Z)*float64(a.Z) + float64(a.S)*float64(a.S))
}

// Normalize returns a by unit length, or Identity if a is the zero
// quaternion (matching the legacy engine's degenerate-input fallback).
func (a Quaternion) Normalize() Quaternion {
	m := a.Magnitude()
	if m == 0 {
		return Identity
	}
	inv := float32(1 / m)
	return Quaternion{a.X * inv, a.Y * inv, a.Z * inv, a.S * inv}
}

// Dot is the 4-vector dot product.
func (a Quaternion) Dot(b Quaternion) float64 {
	return float64(a.X)*float64(b.X) + float64(a.Y)*float64(b.Y) + float64(a.Z)*float64(b.Z) + float64(a.S)*float64(b.S)
}

// Slerp spherically interpolates from a to b by fraction t, taking the
// shorter arc (negating b when the dot product is negative) and falling
// back to linear interpolation plus renormalization when the two
// quaternions are nearly parallel, to avoid a division by a
// near-zero sine.
func Slerp(a, b Quaternion, t float64) Quaternion {
	cosOmega := a.Dot(b)
	if cosOmega < 0 {
		b = b.Neg()
		cosOmega = -cosOmega
	}
	const nearParallel = 0.9995
	if cosOmega > nearParallel {
		return lerp(a, b, t).Normalize()
	}
	omega := math.Acos(cosOmega)
	sinOmega := math.Sin(omega)
	coeffA := float32(math.Sin((1-t)*omega) / sinOmega)
	coeffB := float32(math.Sin(t*omega) / sinOmega)
	return Quaternion{
		X: a.X*coeffA + b.X*coeffB,
		Y: a.Y*coeffA + b.Y*coeffB,
		Z: a.Z*coeffA + b.Z*coeffB,
		S: a.S*coeffA + b.S*coeffB,
	}
}

func lerp(a, b Quaternion, t float64) Quaternion {
	ft := float32(t)
	return Quaternion{
		X: a.X + (b.X-a.X)*ft,
		Y: a.Y + (b.Y-a.Y)*ft,
		Z: a.Z + (b.Z-a.Z)*ft,
		S: a.S + (b.S-a.S)*ft,
	}
}

// Vector3 is the minimal 3-component shape quat needs from value.Vector
// without importing it for arithmetic, kept structurally identical so
// callers can convert with a plain struct literal.
type Vector3 struct {
	X, Y, Z float32
}

// RotateVector applies q's rotation to v: v * q in the legacy operator
// table.
func RotateVector(v Vector3, q Quaternion) Vector3 {
	vq := Quaternion{X: v.X, Y: v.Y, Z: v.Z, S: 0}
	r := q.Mul(vq).Mul(q.Conjugate())
	return Vector3{r.X, r.Y, r.Z}
}

// RotateVectorInverse applies q's inverse rotation to v: v / q.
func RotateVectorInverse(v Vector3, q Quaternion) Vector3 {
	return RotateVector(v, q.Conjugate())
}

// ToFwd, ToLeft and ToUp apply q to the unit basis vectors and normalize,
// giving the legacy llRot2Fwd/llRot2Left/llRot2Up results.
func (a Quaternion) ToFwd() Vector3  { return normalizeVec(RotateVector(Vector3{X: 1}, a)) }
func (a Quaternion) ToLeft() Vector3 { return normalizeVec(RotateVector(Vector3{Y: 1}, a)) }
func (a Quaternion) ToUp() Vector3   { return normalizeVec(RotateVector(Vector3{Z: 1}, a)) }

func normalizeVec(v Vector3) Vector3 {
	m := math.Sqrt(float64(v.X)*float64(v.X) + float64(v.Y)*float64(v.Y) + float64(v.Z)*float64(v.Z))
	if m == 0 {
		return v
	}
	inv := float32(1 / m)
	return Vector3{v.X * inv, v.Y * inv, v.Z * inv}
}

// Index implements member access by name, returning ok=false for any
// field other than x/y/z/s.
func (a Quaternion) Index(member byte) (float32, bool) {
	switch member {
	case 'x':
		return a.X, true
	case 'y':
		return a.Y, true
	case 'z':
		return a.Z, true
	case 's':
		return a.S, true
	default:
		return 0, false
	}
}

// ToValue wraps q as the tagged userdata LSL quaternions ride on.
func ToValue(q Quaternion) value.Value {
	cp := q
	return value.Value{Tag: value.TUserData, UD: &value.UserData{SubTag: value.SubTagQuaternion, Data: &cp}}
}

// FromValue extracts the Quaternion from a quaternion-typed Value.
func FromValue(v value.Value) (Quaternion, bool) {
	if v.Tag != value.TUserData || v.UD == nil || v.UD.SubTag != value.SubTagQuaternion {
		return Quaternion{}, false
	}
	q, ok := v.UD.Data.(*Quaternion)
	if !ok {
		return Quaternion{}, false
	}
	return *q, true
}
