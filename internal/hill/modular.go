package hill

// Reduce returns n mod m normalised into [0, m). Intermediate matrix results
// can be negative, so the remainder is shifted when needed.
func Reduce(n, m int) int {
	r := n % m
	if r < 0 {
		r += m
	}
	return r
}

// ModInverse returns x in [0, m) with a*x ≡ 1 (mod m). The boolean is false
// when gcd(a, m) != 1 and no inverse exists.
func ModInverse(a, m int) (int, bool) {
	if m <= 1 {
		return 0, false
	}
	g, x, _ := extendedGCD(Reduce(a, m), m)
	if g != 1 {
		return 0, false
	}
	return Reduce(x, m), true
}

// GCD returns the greatest common divisor of |a| and |b|.
func GCD(a, b int) int {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// extendedGCD returns g = gcd(a, b) and Bézout coefficients with a*x + b*y = g.
func extendedGCD(a, b int) (g, x, y int) {
	oldR, r := a, b
	oldS, s := 1, 0
	oldT, t := 0, 1
	for r != 0 {
		q := oldR / r
		oldR, r = r, oldR-q*r
		oldS, s = s, oldS-q*s
		oldT, t = t, oldT-q*t
	}
	return oldR, oldS, oldT
}
