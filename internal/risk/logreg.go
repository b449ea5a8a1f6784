package risk

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ClassifierConfig controls logistic regression fitting
type ClassifierConfig struct {
	// C is the inverse L2 regularization strength
	C       float64
	MaxIter int
	// Tol is the gradient max-norm at which fitting stops
	Tol float64
}

// DefaultClassifierConfig returns the production fitting parameters
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{C: 1.0, MaxIter: 1000, Tol: 1e-8}
}

// Classifier is a fitted binary logistic regression
type Classifier struct {
	Weights      []float64  `json:"weights"`
	Intercept    float64    `json:"intercept"`
	ClassWeights [2]float64 `json:"class_weights"`
	Iterations   int        `json:"iterations"`
	Converged    bool       `json:"converged"`
}

// Probability returns P(y=1) for an already scaled feature vector
func (c *Classifier) Probability(x []float64) float64 {
	return sigmoid(floats.Dot(c.Weights, x) + c.Intercept)
}

// BalancedClassWeights weights each class by n / (2 * count(class))
func BalancedClassWeights(y []int) ([2]float64, error) {
	var counts [2]int
	for _, label := range y {
		if label != 0 && label != 1 {
			return [2]float64{}, fmt.Errorf("label %d is not binary", label)
		}
		counts[label]++
	}
	if counts[0] == 0 || counts[1] == 0 {
		return [2]float64{}, fmt.Errorf("need both classes, got %d negatives and %d positives: %w",
			counts[0], counts[1], ErrInsufficientData)
	}
	n := float64(len(y))
	return [2]float64{n / (2 * float64(counts[0])), n / (2 * float64(counts[1]))}, nil
}

// FitLogistic fits an L2-regularized logistic regression with balanced class
// weights using Newton's method with a backtracking line search. The
// intercept is not regularized.
func FitLogistic(x [][]float64, y []int, cfg ClassifierConfig) (*Classifier, error) {
	if len(x) != len(y) {
		return nil, fmt.Errorf("got %d rows and %d labels", len(x), len(y))
	}
	if len(x) == 0 {
		return nil, fmt.Errorf("failed to fit classifier: %w", ErrInsufficientData)
	}
	classWeights, err := BalancedClassWeights(y)
	if err != nil {
		return nil, err
	}

	p := &problem{x: x, y: y, c: cfg.C, d: len(x[0])}
	p.sw = make([]float64, len(y))
	for i, label := range y {
		p.sw[i] = classWeights[label]
	}

	theta := make([]float64, p.d+1)
	clf := &Classifier{ClassWeights: classWeights}

	for clf.Iterations < cfg.MaxIter {
		grad, hess := p.derivatives(theta)
		if maxAbs(grad) < cfg.Tol {
			clf.Converged = true
			break
		}

		step, err := solve(hess, grad)
		if err != nil {
			return nil, fmt.Errorf("failed to compute newton step: %w", err)
		}
		clf.Iterations++

		f0 := p.objective(theta)
		slope := floats.Dot(grad, step)
		t := 1.0
		candidate := make([]float64, len(theta))
		for k := 0; k < 60; k++ {
			for j := range theta {
				candidate[j] = theta[j] - t*step[j]
			}
			if p.objective(candidate) <= f0-1e-4*t*slope {
				break
			}
			t *= 0.5
		}
		copy(theta, candidate)

		if t*maxAbs(step) < 1e-12 {
			clf.Converged = true
			break
		}
	}

	clf.Weights = append([]float64(nil), theta[:p.d]...)
	clf.Intercept = theta[p.d]
	return clf, nil
}

// problem holds the training data for the weighted, regularized log-loss
type problem struct {
	x  [][]float64
	y  []int
	sw []float64
	c  float64
	d  int
}

func (p *problem) linear(theta []float64, i int) float64 {
	return floats.Dot(theta[:p.d], p.x[i]) + theta[p.d]
}

func (p *problem) objective(theta []float64) float64 {
	var loss float64
	for i := range p.x {
		z := p.linear(theta, i)
		loss += p.sw[i] * (softplus(z) - float64(p.y[i])*z)
	}
	reg := floats.Dot(theta[:p.d], theta[:p.d])
	return 0.5*reg + p.c*loss
}

// derivatives returns the gradient and Hessian of the objective
func (p *problem) derivatives(theta []float64) ([]float64, *mat.SymDense) {
	n := p.d + 1
	grad := make([]float64, n)
	hess := mat.NewSymDense(n, nil)

	row := make([]float64, n)
	row[p.d] = 1
	for i := range p.x {
		copy(row, p.x[i])
		prob := sigmoid(p.linear(theta, i))
		r := p.c * p.sw[i] * (prob - float64(p.y[i]))
		curv := p.c * p.sw[i] * prob * (1 - prob)
		for j := 0; j < n; j++ {
			grad[j] += r * row[j]
			for k := j; k < n; k++ {
				hess.SetSym(j, k, hess.At(j, k)+curv*row[j]*row[k])
			}
		}
	}
	for j := 0; j < p.d; j++ {
		grad[j] += theta[j]
		hess.SetSym(j, j, hess.At(j, j)+1)
	}
	return grad, hess
}

// solve returns hess^-1 * grad, adding a small ridge if hess is not positive definite
func solve(hess *mat.SymDense, grad []float64) ([]float64, error) {
	b := mat.NewVecDense(len(grad), grad)
	var step mat.VecDense

	var chol mat.Cholesky
	if chol.Factorize(hess) {
		if err := chol.SolveVecTo(&step, b); err == nil {
			return step.RawVector().Data, nil
		}
	}

	n := len(grad)
	ridged := mat.NewSymDense(n, nil)
	ridged.CopySym(hess)
	for j := 0; j < n; j++ {
		ridged.SetSym(j, j, ridged.At(j, j)+1e-8)
	}
	if err := step.SolveVec(ridged, b); err != nil {
		return nil, err
	}
	return step.RawVector().Data, nil
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// softplus computes log(1 + e^z) without overflow
func softplus(z float64) float64 {
	if z > 0 {
		return z + math.Log1p(math.Exp(-z))
	}
	return math.Log1p(math.Exp(z))
}

func maxAbs(v []float64) float64 {
	var m float64
	for _, x := range v {
		if a := math.Abs(x); a > m {
			m = a
		}
	}
	return m
}
