package geometry

import (
	"image"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// MinFitPoints is the smallest point set a conic can be fitted to.
const MinFitPoints = 5

// ErrDegenerateFit is returned when no proper ellipse can be fitted to the points.
var ErrDegenerateFit = errors.New("degenerate ellipse fit")

// FitEllipse fits an ellipse to points with the direct least-squares method
// (Fitzgibbon, Pilu & Fisher) in the numerically stable partitioned form of
// Halir & Flusser. Points are centered and scaled before fitting.
func FitEllipse(points []image.Point) (Ellipse, error) {
	n := len(points)
	if n < MinFitPoints {
		return Ellipse{}, errors.Wrapf(ErrDegenerateFit, "need at least %d points, got %d", MinFitPoints, n)
	}

	var mx, my float64
	for _, p := range points {
		mx += float64(p.X)
		my += float64(p.Y)
	}
	mx /= float64(n)
	my /= float64(n)

	var scale float64
	for _, p := range points {
		scale += math.Hypot(float64(p.X)-mx, float64(p.Y)-my)
	}
	scale /= float64(n)
	if scale == 0 {
		return Ellipse{}, errors.Wrap(ErrDegenerateFit, "all points coincide")
	}

	quad := mat.NewDense(n, 3, nil)
	lin := mat.NewDense(n, 3, nil)
	for i, p := range points {
		x := (float64(p.X) - mx) / scale
		y := (float64(p.Y) - my) / scale
		quad.SetRow(i, []float64{x * x, x * y, y * y})
		lin.SetRow(i, []float64{x, y, 1})
	}

	var s1, s2, s3 mat.Dense
	s1.Mul(quad.T(), quad)
	s2.Mul(quad.T(), lin)
	s3.Mul(lin.T(), lin)

	var s3inv mat.Dense
	if err := s3inv.Inverse(&s3); err != nil {
		return Ellipse{}, errors.Wrap(ErrDegenerateFit, "singular scatter matrix")
	}

	// linear coefficients as a function of the quadratic ones: a2 = T·a1
	var t, negT mat.Dense
	t.Mul(&s3inv, s2.T())
	negT.Scale(-1, &t)

	var st, reducedScatter mat.Dense
	st.Mul(&s2, &negT)
	reducedScatter.Add(&s1, &st)

	// premultiply by the inverse of the constraint matrix [[0 0 2] [0 -1 0] [2 0 0]]
	system := mat.NewDense(3, 3, nil)
	for j := 0; j < 3; j++ {
		system.Set(0, j, reducedScatter.At(2, j)/2)
		system.Set(1, j, -reducedScatter.At(1, j))
		system.Set(2, j, reducedScatter.At(0, j)/2)
	}

	var eig mat.Eigen
	if ok := eig.Factorize(system, mat.EigenRight); !ok {
		return Ellipse{}, errors.Wrap(ErrDegenerateFit, "eigen decomposition failed")
	}
	vectors := mat.NewCDense(3, 3, nil)
	eig.VectorsTo(vectors)

	var a1 []float64
	for k := 0; k < 3; k++ {
		a, b, c := real(vectors.At(0, k)), real(vectors.At(1, k)), real(vectors.At(2, k))
		if 4*a*c-b*b > 0 {
			a1 = []float64{a, b, c}
			break
		}
	}
	if a1 == nil {
		return Ellipse{}, errors.Wrap(ErrDegenerateFit, "no elliptical solution")
	}

	var a2 mat.VecDense
	a2.MulVec(&negT, mat.NewVecDense(3, a1))

	e, err := conicToEllipse(a1[0], a1[1], a1[2], a2.AtVec(0), a2.AtVec(1), a2.AtVec(2))
	if err != nil {
		return Ellipse{}, err
	}

	e.Center = Point2f{X: e.Center.X*scale + mx, Y: e.Center.Y*scale + my}
	e.Major *= scale
	e.Minor *= scale
	return e, nil
}

// conicToEllipse converts A·x² + B·xy + C·y² + D·x + E·y + F = 0 into the
// rotated-rectangle form.
func conicToEllipse(a, b, c, d, e, f float64) (Ellipse, error) {
	if a+c < 0 {
		a, b, c, d, e, f = -a, -b, -c, -d, -e, -f
	}

	den := b*b - 4*a*c
	if den >= 0 {
		return Ellipse{}, errors.Wrap(ErrDegenerateFit, "conic is not an ellipse")
	}
	x0 := (2*c*d - b*e) / den
	y0 := (2*a*e - b*d) / den
	f0 := f + (d*x0+e*y0)/2

	mean := (a + c) / 2
	spread := math.Hypot((a-c)/2, b/2)
	lambdaMax := mean + spread
	lambdaMin := mean - spread
	if lambdaMin <= 0 || f0 >= 0 {
		return Ellipse{}, errors.Wrap(ErrDegenerateFit, "imaginary ellipse")
	}

	semiMajor := math.Sqrt(-f0 / lambdaMin)
	semiMinor := math.Sqrt(-f0 / lambdaMax)

	angle := (0.5*math.Atan2(b, a-c) + math.Pi/2) * 180 / math.Pi
	angle = math.Mod(angle, 180)
	if angle < 0 {
		angle += 180
	}

	out := Ellipse{
		Center: Point2f{X: x0, Y: y0},
		Major:  2 * semiMajor,
		Minor:  2 * semiMinor,
		Angle:  angle,
	}
	if out.Degenerate() {
		return Ellipse{}, errors.Wrap(ErrDegenerateFit, "zero-length axis")
	}
	return out, nil
}
