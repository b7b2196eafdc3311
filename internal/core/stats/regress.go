package stats

import (
	"math"

	perr "resurgence/internal/platform/errors"

	"gonum.org/v1/gonum/mat"
)

// OLSResult holds a fitted linear model with HAC-robust inference
type OLSResult struct {
	Coef []float64 // one per design column
	SE   []float64 // Newey-West standard errors
	P    []float64 // two-sided z-based p-values
	R2   float64
	N    int
}

// OLS fits y = X*beta by least squares with Newey-West (HAC) standard
// errors using lags autocovariance lags (0 gives plain heteroskedasticity-
// robust errors). X is row-major, one row per observation
func OLS(X [][]float64, y []float64, lags int) (OLSResult, error) {
	n := len(y)
	if n == 0 || len(X) != n {
		return OLSResult{}, perr.InsufficientDataf("regression: %d rows", n)
	}
	k := len(X[0])
	if n <= k {
		return OLSResult{}, perr.InsufficientDataf("regression: %d rows for %d coefficients", n, k)
	}

	xm := mat.NewDense(n, k, nil)
	for i, row := range X {
		xm.SetRow(i, row)
	}
	yv := mat.NewVecDense(n, append([]float64(nil), y...))

	var xtx mat.Dense
	xtx.Mul(xm.T(), xm)
	var xtxInv mat.Dense
	if err := xtxInv.Inverse(&xtx); err != nil {
		return OLSResult{}, perr.Wrap(err, perr.ErrorCodeInsufficientData, "regression: singular design")
	}

	var xty mat.VecDense
	xty.MulVec(xm.T(), yv)
	var beta mat.VecDense
	beta.MulVec(&xtxInv, &xty)

	// residuals and fit quality
	var fitted mat.VecDense
	fitted.MulVec(xm, &beta)
	resid := make([]float64, n)
	ybar := Mean(y)
	var sse, sst float64
	for i := 0; i < n; i++ {
		resid[i] = y[i] - fitted.AtVec(i)
		sse += resid[i] * resid[i]
		d := y[i] - ybar
		sst += d * d
	}
	r2 := math.NaN()
	if sst > 0 {
		r2 = 1 - sse/sst
	}

	// Newey-West meat: Gamma_0 plus Bartlett-weighted lag autocovariances
	meat := mat.NewDense(k, k, nil)
	for t := 0; t < n; t++ {
		addOuter(meat, xm.RawRowView(t), xm.RawRowView(t), resid[t]*resid[t])
	}
	if lags > n-1 {
		lags = n - 1
	}
	for j := 1; j <= lags; j++ {
		w := 1 - float64(j)/float64(lags+1)
		for t := j; t < n; t++ {
			s := w * resid[t] * resid[t-j]
			addOuter(meat, xm.RawRowView(t), xm.RawRowView(t-j), s)
			addOuter(meat, xm.RawRowView(t-j), xm.RawRowView(t), s)
		}
	}

	var tmp, cov mat.Dense
	tmp.Mul(&xtxInv, meat)
	cov.Mul(&tmp, &xtxInv)

	res := OLSResult{
		Coef: make([]float64, k),
		SE:   make([]float64, k),
		P:    make([]float64, k),
		R2:   r2,
		N:    n,
	}
	for i := 0; i < k; i++ {
		res.Coef[i] = beta.AtVec(i)
		v := cov.At(i, i)
		if v <= 0 {
			res.SE[i] = math.NaN()
			res.P[i] = math.NaN()
			continue
		}
		res.SE[i] = math.Sqrt(v)
		z := res.Coef[i] / res.SE[i]
		res.P[i] = 2 * stdNormal.CDF(-math.Abs(z))
	}
	return res, nil
}

// addOuter accumulates s * a*b' into m
func addOuter(m *mat.Dense, a, b []float64, s float64) {
	for i := range a {
		for j := range b {
			m.Set(i, j, m.At(i, j)+s*a[i]*b[j])
		}
	}
}

// ITSResult is a segmented interrupted-time-series fit
// y = const + trend*t + level*post + slopechange*(t*post)
type ITSResult struct {
	Const       float64
	Trend       float64
	TrendP      float64
	Level       float64
	LevelP      float64
	SlopeChange float64
	SlopeP      float64
	R2          float64
	N           int
}

// SegmentedITS fits the four-term intervention model with Newey-West errors.
// postAt is the index of the first post period; lags caps at n-1
func SegmentedITS(y []float64, postAt, lags int) (ITSResult, error) {
	n := len(y)
	if postAt <= 0 || postAt >= n {
		return ITSResult{}, perr.InsufficientDataf("segmented fit: boundary at %d of %d", postAt, n)
	}
	X := make([][]float64, n)
	for t := 0; t < n; t++ {
		post := 0.0
		if t >= postAt {
			post = 1
		}
		X[t] = []float64{1, float64(t), post, float64(t) * post}
	}
	if lags > n-1 {
		lags = n - 1
	}
	fit, err := OLS(X, y, lags)
	if err != nil {
		return ITSResult{}, err
	}
	return ITSResult{
		Const:       fit.Coef[0],
		Trend:       fit.Coef[1],
		TrendP:      fit.P[1],
		Level:       fit.Coef[2],
		LevelP:      fit.P[2],
		SlopeChange: fit.Coef[3],
		SlopeP:      fit.P[3],
		R2:          fit.R2,
		N:           n,
	}, nil
}

// TrendFit is a plain two-term linear fit used for pre-trend diagnostics
// and annual slope comparison
type TrendFit struct {
	Intercept float64
	Slope     float64
	SlopeP    float64
	R2        float64
	N         int
}

// LinearTrend fits y = a + b*t with Newey-West errors (lags may be 0)
func LinearTrend(y []float64, lags int) (TrendFit, error) {
	n := len(y)
	X := make([][]float64, n)
	for t := 0; t < n; t++ {
		X[t] = []float64{1, float64(t)}
	}
	fit, err := OLS(X, y, lags)
	if err != nil {
		return TrendFit{}, err
	}
	return TrendFit{
		Intercept: fit.Coef[0],
		Slope:     fit.Coef[1],
		SlopeP:    fit.P[1],
		R2:        fit.R2,
		N:         n,
	}, nil
}
