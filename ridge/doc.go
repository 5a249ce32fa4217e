// Package ridge trains ridge and ordinary linear regression with the normal
// equations method. Nodes accumulate XᵀX and Xᵀy, the master adds them and
// solves the penalized system once per response.
package ridge
