package repository

// Collection names shared by the MongoDB repositories and index setup
const (
	CouponBooksCollection    = "coupon_books"
	CouponsCollection        = "coupons"
	UserCouponsCollection    = "user_coupons"
	TransactionsCollection   = "transactions"
	GenerationJobsCollection = "generation_jobs"
)
