package algo

// 行人网络中的点属性
type WalkNodeAttr struct {
	ID int64
}

// 行人网络中的边属性
type WalkEdgeAttr struct {
	From int64
	To   int64
}
