package mocks

import (
	"github.com/stretchr/testify/mock"

	"github.com/mindhaven/carekit/navigation"
)

// MockNavigator provides a testify-based mock implementation of navigation.Navigator.
type MockNavigator struct {
	mock.Mock
}

var _ navigation.Navigator = (*MockNavigator)(nil)

// CurrentPath implements navigation.Navigator
func (m *MockNavigator) CurrentPath() string {
	return m.Called().String(0)
}

// NavigateTo implements navigation.Navigator
func (m *MockNavigator) NavigateTo(path string) {
	m.Called(path)
}

// ExpectCurrentPath sets up an expectation for CurrentPath.
func (m *MockNavigator) ExpectCurrentPath(path string) *mock.Call {
	return m.On("CurrentPath").Return(path)
}

// ExpectNavigateTo sets up an expectation for NavigateTo.
func (m *MockNavigator) ExpectNavigateTo(path string) *mock.Call {
	return m.On("NavigateTo", path).Return()
}
