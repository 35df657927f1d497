package clone

type Cloner[T any] interface {
	Clone() T
}

func DeepSlice[T Cloner[T]](a []T) []T {
	if a == nil {
		return nil
	}
	res := make([]T, len(a))
	for i, v := range a {
		res[i] = v.Clone()
	}
	return res
}
