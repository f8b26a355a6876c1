package collision

func circleCircle(a, b *Collider) bool {
	return a.Center().Dist(b.Center()) <= a.Radius()+b.Radius()
}

func circleBox(circle, box *Collider) bool {
	return boxCircleAt(box.Center(), box.HalfExtents(), circle.Center(), circle.Radius())
}
