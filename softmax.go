package warp

// Softmax sampler: composes the reduction and elementwise engines into
// a numerically stable categorical sampler over one row of logits.

// SoftmaxSample normalizes a 1×width row of unnormalized logits in
// place and draws one token index from the resulting distribution using
// a caller-supplied uniform source (rnd must return values in [0,1)).
//
// The pipeline runs strictly in order: global max, subtract, exp, row
// sum, divide, then a sequential inverse-CDF scan over the host copy of
// the probabilities. The scan is a deliberate serialization point:
// inverse-CDF sampling is inherently sequential over the distribution,
// and vocabulary widths keep the cost negligible next to the kernels.
//
// The logits buffer is consumed: on return it holds the normalized
// probabilities.
func SoftmaxSample(logits Matrix, rnd func() float32) (int, error) {
	if logits.Rows != 1 || logits.Cols < 1 {
		return 0, NewDimensionError("SoftmaxSample", "logits must be a non-empty single row")
	}

	// Max-shift for numerical stability: exp never sees a positive
	// argument, so the sum cannot overflow.
	max, err := GlobalMax(logits)
	if err != nil {
		return 0, err
	}
	if err := AddConst(logits, -max); err != nil {
		return 0, err
	}
	if err := Exp(logits); err != nil {
		return 0, err
	}

	sums, err := NewMatrix(logits.Rows, logits.Cols)
	if err != nil {
		return 0, err
	}
	defer sums.Free()
	if err := RowSum(logits, sums); err != nil {
		return 0, err
	}
	if err := Synchronize(); err != nil {
		return 0, err
	}
	sum := sums.Data.Float32()[0]
	if sum == 0 {
		return 0, ErrZeroSum
	}
	if err := DivideConst(logits, sum); err != nil {
		return 0, err
	}

	probs, err := logits.ToHost()
	if err != nil {
		return 0, err
	}

	// Sequential inverse-CDF scan: first index whose cumulative
	// probability reaches the draw. Rounding can leave the cumulative
	// sum fractionally below 1, so exhaustion falls back to the last
	// index.
	r := rnd()
	var cum float32
	for i, p := range probs.Data {
		cum += p
		if cum >= r {
			return i, nil
		}
	}
	return logits.Cols - 1, nil
}

// Softmax normalizes every row of m into a probability distribution in
// place, using the same max-shifted pipeline the sampler runs plus a
// row-sum broadcast. The shift uses the global maximum, so a row whose
// own maximum sits more than ~88 below it can underflow to zero mass;
// single-row inputs (the sampler case) are always safe.
func Softmax(m Matrix) error {
	if m.Len() == 0 {
		return nil
	}

	max, err := GlobalMax(m)
	if err != nil {
		return err
	}
	if err := AddConst(m, -max); err != nil {
		return err
	}
	if err := Exp(m); err != nil {
		return err
	}

	sums, err := NewMatrix(m.Rows, m.Cols)
	if err != nil {
		return err
	}
	defer sums.Free()
	if err := RowSum(m, sums); err != nil {
		return err
	}
	if err := Broadcast(sums); err != nil {
		return err
	}
	return Divide(m, sums)
}
