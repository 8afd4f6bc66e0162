package market

// OpenPage collects up to PageSize unclaimed posts from feed starting at
// index. next is the first index that was not examined, so passing it back
// continues the scan without skipping or repeating posts.
func OpenPage(feed []Post, index int) (posts []Post, next int) {
	posts = make([]Post, 0, PageSize)
	next = max(index, 0)
	for len(posts) < PageSize && next < len(feed) {
		if !feed[next].Claimed() {
			posts = append(posts, feed[next].clone())
		}
		next++
	}
	return posts, next
}
