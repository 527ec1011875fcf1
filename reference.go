package warp

import "math"

// Reference contains simple, sequential host implementations of every
// kernel, with signatures mirroring the engine. They are the oracle the
// tests compare against (within OracleTol) and are never a runtime
// control path.
type Reference struct{}

// MatMul computes C = A·Bᵗ.
func (Reference) MatMul(a, b HostMatrix) HostMatrix {
	out := NewHostMatrix(a.Rows, b.Rows)
	for i := 0; i < a.Rows; i++ {
		for j := 0; j < b.Rows; j++ {
			var sum float32
			for k := 0; k < a.Cols; k++ {
				sum += a.Data[i*a.Cols+k] * b.Data[j*b.Cols+k]
			}
			out.Data[i*b.Rows+j] = sum
		}
	}
	return out
}

// Transpose returns the cols×rows transpose of m.
func (Reference) Transpose(m HostMatrix) HostMatrix {
	out := NewHostMatrix(m.Cols, m.Rows)
	for i := 0; i < m.Rows*m.Cols; i++ {
		out.Data[i%m.Cols*m.Rows+i/m.Cols] = m.Data[i]
	}
	return out
}

// RowSum writes each row's sum to column 0 of out, leaving the other
// positions of out untouched, matching the engine contract.
func (Reference) RowSum(in HostMatrix, out *HostMatrix) {
	for r := 0; r < in.Rows; r++ {
		var sum float32
		for c := 0; c < in.Cols; c++ {
			sum += in.Data[r*in.Cols+c]
		}
		out.Data[r*in.Cols] = sum
	}
}

// GlobalMax returns the maximum element.
func (Reference) GlobalMax(m HostMatrix) float32 {
	max := float32(-math.MaxFloat32)
	for _, v := range m.Data {
		if v > max {
			max = v
		}
	}
	return max
}

// Elementwise operators, in place like the engine.

func (Reference) DivideConst(m HostMatrix, k float32) {
	for i := range m.Data {
		m.Data[i] /= k
	}
}

func (Reference) AddConst(m HostMatrix, k float32) {
	for i := range m.Data {
		m.Data[i] += k
	}
}

func (Reference) InvSqrt(m HostMatrix) {
	for i := range m.Data {
		m.Data[i] = float32(1 / math.Sqrt(float64(m.Data[i])))
	}
}

func (Reference) Exp(m HostMatrix) {
	for i := range m.Data {
		m.Data[i] = float32(math.Exp(float64(m.Data[i])))
	}
}

func (Reference) Broadcast(m HostMatrix) {
	for i := range m.Data {
		m.Data[i] = m.Data[(i/m.Cols)*m.Cols]
	}
}

func (Reference) Tril(m HostMatrix, k int) {
	for i := range m.Data {
		if i/k < i%k {
			m.Data[i] = 0
		} else {
			m.Data[i] = float32(math.Exp(float64(m.Data[i]) / trilScale))
		}
	}
}

func (Reference) GELU(m HostMatrix) {
	for i := range m.Data {
		x := float64(m.Data[i])
		m.Data[i] = float32(x / 2 * (1 + math.Tanh(geluSqrt2OverPi*(x+geluCoefficient*x*x*x))))
	}
}

func (Reference) Add(a, b HostMatrix) {
	for i := range a.Data {
		a.Data[i] += b.Data[i]
	}
}

func (Reference) Multiply(a, b HostMatrix) {
	for i := range a.Data {
		a.Data[i] *= b.Data[i]
	}
}

func (Reference) Divide(a, b HostMatrix) {
	for i := range a.Data {
		a.Data[i] /= b.Data[i]
	}
}

func (Reference) AddTile(a, b HostMatrix) {
	for i := range a.Data {
		a.Data[i] += b.Data[(i/a.Cols)*b.Cols]
	}
}

func (Reference) MultiplyTile(a, b HostMatrix) {
	for i := range a.Data {
		a.Data[i] *= b.Data[(i/a.Cols)*b.Cols]
	}
}

// EmbeddingGather mirrors the engine gather on host buffers.
func (Reference) EmbeddingGather(tokens []int32, word, pos HostMatrix, posStride int, out *HostMatrix) {
	dim := out.Cols
	for t := 0; t < out.Rows; t++ {
		for d := 0; d < dim; d++ {
			out.Data[t*dim+d] = word.Data[int(tokens[t])*dim+d] + pos.Data[d*posStride+t]
		}
	}
}

// Softmax normalizes a logits row in place with a max shift.
func (r Reference) Softmax(row []float32) {
	max := float32(-math.MaxFloat32)
	for _, v := range row {
		if v > max {
			max = v
		}
	}
	var sum float32
	for i := range row {
		row[i] = float32(math.Exp(float64(row[i] - max)))
		sum += row[i]
	}
	for i := range row {
		row[i] /= sum
	}
}

// SampleIndex performs the inverse-CDF scan over a probability vector.
func (Reference) SampleIndex(probs []float32, r float32) int {
	var cum float32
	for i, p := range probs {
		cum += p
		if cum >= r {
			return i
		}
	}
	return len(probs) - 1
}
